package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"ticket-exchange/internal/middleware"
	"ticket-exchange/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

var (
	InvalidJSON = `{"invalid": json}`

	testBuyer = model.Identity{UserID: "buyer-1", PatronID: "P-buyer-1", Email: "buyer-1@example.com"}
	testAdmin = model.Identity{UserID: "ops-1"}
)

func init() {
	gin.SetMode(gin.TestMode)
}

// create JSON request body
func createJSONRequest(data interface{}) *bytes.Buffer {
	if s, ok := data.(string); ok {
		return bytes.NewBufferString(s)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return bytes.NewBuffer([]byte(""))
	}
	return bytes.NewBuffer(jsonData)
}

// create HTTP request with JSON body, signed as caller when caller is non-nil
func createJSONHTTPRequest(t *testing.T, method, url string, data interface{}, caller *model.Identity, role string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, createJSONRequest(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	if caller != nil {
		token, err := middleware.IssueToken(testSecret, *caller, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &out))
	return out
}

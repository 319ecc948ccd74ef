package middleware

import (
	"net/http"
	"strings"
	"time"

	"ticket-exchange/internal/model"
	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	callerKey = "caller"
	roleKey   = "role"

	RoleAdmin = "admin"
)

// Claims 平台簽發的 access token 內容
type Claims struct {
	PatronID string `json:"patron_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken 以 HS256 簽發 token
func IssueToken(secret string, caller model.Identity, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		PatronID: caller.PatronID,
		Email:    caller.Email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Authenticate 驗證 Bearer token，將呼叫者身分放進 gin context
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthenticated(c, "missing bearer token")
			return
		}

		var claims Claims
		tok, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims,
			func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || !tok.Valid || claims.Subject == "" {
			unauthenticated(c, "invalid token")
			return
		}

		c.Set(callerKey, model.Identity{
			UserID:   claims.Subject,
			PatronID: claims.PatronID,
			Email:    claims.Email,
		})
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequireRole 限制特定角色
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(roleKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient role",
				"code":  apperrors.CodeUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// CallerFrom 取得 Authenticate 放入的呼叫者身分
func CallerFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return model.Identity{}, false
	}
	caller, ok := v.(model.Identity)
	return caller, ok
}

func unauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  apperrors.CodeUnauthorized,
	})
}

package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticket-exchange/internal/handler"
	"ticket-exchange/internal/middleware"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/service/mocks"
	"ticket-exchange/internal/testutil"
	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupTicketTestRouter(mockService *mocks.ListingServiceMock) *gin.Engine {
	router := gin.New()
	api := router.Group("/api/v1", middleware.Authenticate(testSecret))
	handler.NewTicketHandler(mockService).RegisterRoutes(api)
	return router
}

func TestCreateTicket(t *testing.T) {
	body := map[string]interface{}{
		"price":    "25.00",
		"currency": "USD",
		"seat":     map[string]string{"section": "101", "row": "A", "seat": "7"},
	}

	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		mockService.On("ListTicket", mock.Anything, testBuyer, mock.MatchedBy(func(req model.ListTicketRequest) bool {
			return req.Price.Equal(decimal.RequireFromString("25")) && req.Currency == "USD" && req.Seat.Section == "101"
		})).Return(testutil.NewAvailableTicket(), nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/tickets", body, &testBuyer, ""))

		assert.Equal(t, http.StatusCreated, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - Unauthenticated", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/tickets", body, nil, ""))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "ListTicket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failed - InvalidJSON", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/tickets", InvalidJSON, &testBuyer, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", decodeBody(t, w.Body)["code"])
	})

	t.Run("Failed - NoMatch", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		mockService.On("ListTicket", mock.Anything, testBuyer, mock.Anything).Return(nil, apperrors.ErrNoMatch).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/tickets", body, &testBuyer, ""))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "NO_MATCH", decodeBody(t, w.Body)["code"])
	})
}

func TestListTickets(t *testing.T) {
	t.Run("DefaultsToAvailable", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		mockService.On("ListTickets", mock.Anything, mock.MatchedBy(func(f model.TicketFilter) bool {
			return f.Status != nil && *f.Status == model.TicketStatusAvailable
		})).Return([]*model.Ticket{testutil.NewAvailableTicket()}, nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "GET", "/api/v1/tickets", nil, &testBuyer, ""))

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - InvalidStatus", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "GET", "/api/v1/tickets?status=refunded", nil, &testBuyer, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetTicket(t *testing.T) {
	t.Run("Failed - InvalidID", func(t *testing.T) {
		router := setupTicketTestRouter(mocks.NewListingServiceMock())

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "GET", "/api/v1/tickets/not-a-uuid", nil, &testBuyer, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Failed - NotFound", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)
		ticket := testutil.NewAvailableTicket()

		mockService.On("GetTicket", mock.Anything, ticket.ID).Return(nil, apperrors.ErrTicketNotFound).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "GET", "/api/v1/tickets/"+ticket.ID.String(), nil, &testBuyer, ""))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decodeBody(t, w.Body)["code"])
	})
}

func TestMatchEvent(t *testing.T) {
	sub := model.EventSubmission{Name: "Example Concert", Venue: "Example Arena", DateTime: "2025-10-18T19:00:00"}

	t.Run("UsesCallerPatronID", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		mockService.On("MatchEvent", mock.Anything, sub, testBuyer.PatronID).
			Return(&model.MatchedEvent{EventID: "E1", NameScore: 100, VenueScore: 100}, nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/events/match", sub, &testBuyer, ""))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "E1", decodeBody(t, w.Body)["event_id"])
	})

	t.Run("Failed - CatalogUnavailable", func(t *testing.T) {
		mockService := mocks.NewListingServiceMock()
		router := setupTicketTestRouter(mockService)

		mockService.On("MatchEvent", mock.Anything, sub, testBuyer.PatronID).
			Return(nil, fmt.Errorf("%w: timeout", apperrors.ErrCatalogUnavailable)).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/events/match", sub, &testBuyer, ""))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "CATALOG_UNAVAILABLE", decodeBody(t, w.Body)["code"])
	})

	t.Run("Failed - MissingFields", func(t *testing.T) {
		router := setupTicketTestRouter(mocks.NewListingServiceMock())

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/events/match", map[string]string{"name": "x"}, &testBuyer, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

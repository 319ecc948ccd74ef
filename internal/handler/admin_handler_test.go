package handler_test

import (
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupAdminTestRouter(listing *mocks.ListingServiceMock, purchase *mocks.PurchaseServiceMock) *gin.Engine {
	router := gin.New()
	admin := router.Group("/api/v1/admin",
		middleware.Authenticate(testSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	handler.NewAdminHandler(listing, purchase).RegisterRoutes(admin)
	return router
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	listing := mocks.NewListingServiceMock()
	router := setupAdminTestRouter(listing, mocks.NewPurchaseServiceMock())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, createJSONHTTPRequest(t, "GET", "/api/v1/admin/reconciliation", nil, &testBuyer, ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
	listing.AssertNotCalled(t, "ListReconciliation", mock.Anything)
}

func TestAdmin_ListReconciliation(t *testing.T) {
	listing := mocks.NewListingServiceMock()
	router := setupAdminTestRouter(listing, mocks.NewPurchaseServiceMock())

	listing.On("ListReconciliation", mock.Anything).Return([]*model.Ticket{testutil.NewAvailableTicket()}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, createJSONHTTPRequest(t, "GET", "/api/v1/admin/reconciliation", nil, &testAdmin, middleware.RoleAdmin))

	assert.Equal(t, http.StatusOK, w.Code)
	listing.AssertExpectations(t)
}

func TestAdmin_Reconcile(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		purchase := mocks.NewPurchaseServiceMock()
		router := setupAdminTestRouter(mocks.NewListingServiceMock(), purchase)
		ticket := testutil.NewAvailableTicket()

		purchase.On("Reconcile", mock.Anything, ticket.ID, testAdmin).
			Return(&model.PurchaseResult{Outcome: model.OutcomeReleased, Ticket: ticket}, nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/admin/tickets/"+ticket.ID.String()+"/reconcile", nil, &testAdmin, middleware.RoleAdmin))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "RELEASED", decodeBody(t, w.Body)["outcome"])
	})

	t.Run("Failed - StillStranded", func(t *testing.T) {
		purchase := mocks.NewPurchaseServiceMock()
		router := setupAdminTestRouter(mocks.NewListingServiceMock(), purchase)
		ticket := testutil.NewAvailableTicket()

		purchase.On("Reconcile", mock.Anything, ticket.ID, testAdmin).
			Return(nil, apperrors.ErrReconciliationRequired).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(t, "POST", "/api/v1/admin/tickets/"+ticket.ID.String()+"/reconcile", nil, &testAdmin, middleware.RoleAdmin))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAdmin_SagaEvents(t *testing.T) {
	listing := mocks.NewListingServiceMock()
	router := setupAdminTestRouter(listing, mocks.NewPurchaseServiceMock())
	ticket := testutil.NewAvailableTicket()

	listing.On("SagaEvents", mock.Anything, ticket.ID).Return([]*model.SagaEvent{
		{TicketID: ticket.ID, Step: model.StepReserve, Outcome: "ok"},
	}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, createJSONHTTPRequest(t, "GET", "/api/v1/admin/tickets/"+ticket.ID.String()+"/events", nil, &testAdmin, middleware.RoleAdmin))

	assert.Equal(t, http.StatusOK, w.Code)
	listing.AssertExpectations(t)
}

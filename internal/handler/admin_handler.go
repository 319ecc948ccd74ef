package handler

import (
	"net/http"

	"ticket-exchange/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 營運人員處理需要對帳的票券
type AdminHandler struct {
	listing  service.ListingService
	purchase service.PurchaseService
}

func NewAdminHandler(listing service.ListingService, purchase service.PurchaseService) *AdminHandler {
	return &AdminHandler{listing: listing, purchase: purchase}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("reconciliation", h.ListReconciliation)
	router.POST("tickets/:id/reconcile", h.Reconcile)
	router.GET("tickets/:id/events", h.SagaEvents)
}

func (h *AdminHandler) ListReconciliation(c *gin.Context) {
	tickets, err := h.listing.ListReconciliation(c)
	if err != nil {
		writeError(c, err, "ListReconciliation")
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func (h *AdminHandler) Reconcile(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	operator, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.purchase.Reconcile(c, id, operator)
	if err != nil {
		writeError(c, err, "Reconcile")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) SagaEvents(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	events, err := h.listing.SagaEvents(c, id)
	if err != nil {
		writeError(c, err, "SagaEvents")
		return
	}
	c.JSON(http.StatusOK, events)
}

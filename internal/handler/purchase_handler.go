package handler

import (
	"context"
	"net/http"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PurchaseHandler struct {
	service service.PurchaseService
}

func NewPurchaseHandler(service service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

func (h *PurchaseHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("tickets/:id/reserve", h.Reserve)
	router.POST("tickets/:id/authorize", h.AuthorizePayment)
	router.POST("tickets/:id/transfer", h.InitiateTransfer)
	router.POST("tickets/:id/confirm", h.Confirm)
	router.POST("tickets/:id/cancel", h.Cancel)
	router.POST("tickets/:id/purchase", h.Purchase)
}

type purchaseStep func(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error)

// run 所有購買步驟共用：解析票券 ID 與呼叫者，成功回傳 PurchaseResult
func (h *PurchaseHandler) run(c *gin.Context, operation string, step purchaseStep) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	identity, ok := caller(c)
	if !ok {
		return
	}

	result, err := step(c, id, identity)
	if err != nil {
		writeError(c, err, operation)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PurchaseHandler) Reserve(c *gin.Context) {
	h.run(c, "Reserve", h.service.Reserve)
}

func (h *PurchaseHandler) AuthorizePayment(c *gin.Context) {
	h.run(c, "AuthorizePayment", h.service.AuthorizePayment)
}

func (h *PurchaseHandler) InitiateTransfer(c *gin.Context) {
	h.run(c, "InitiateTransfer", h.service.InitiateTransfer)
}

func (h *PurchaseHandler) Confirm(c *gin.Context) {
	h.run(c, "Confirm", h.service.Confirm)
}

func (h *PurchaseHandler) Cancel(c *gin.Context) {
	h.run(c, "Cancel", h.service.Cancel)
}

func (h *PurchaseHandler) Purchase(c *gin.Context) {
	h.run(c, "Purchase", h.service.Purchase)
}

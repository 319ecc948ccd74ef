package handler

import (
	"net/http"
	"strings"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/service"
	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	service service.ListingService
}

func NewTicketHandler(service service.ListingService) *TicketHandler {
	return &TicketHandler{service: service}
}

func (h *TicketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("tickets", h.List)
	router.GET("tickets/:id", h.Get)
	router.POST("tickets", h.Create)
	router.POST("events/match", h.MatchEvent)
}

// ListTicketsQuery 市集瀏覽條件，預設只列出 available
type ListTicketsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (h *TicketHandler) List(c *gin.Context) {
	var q ListTicketsQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}

	status := model.TicketStatusAvailable
	if q.Status != "" {
		status = model.TicketStatus(strings.ToLower(q.Status))
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "code": apperrors.CodeInvalidInput})
			return
		}
	}

	tickets, err := h.service.ListTickets(c, model.TicketFilter{Status: &status, Limit: q.Limit})
	if err != nil {
		writeError(c, err, "ListTickets")
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	ticket, err := h.service.GetTicket(c, id)
	if err != nil {
		writeError(c, err, "GetTicket")
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) Create(c *gin.Context) {
	seller, ok := caller(c)
	if !ok {
		return
	}
	var req model.ListTicketRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	created, err := h.service.ListTicket(c, seller, req)
	if err != nil {
		writeError(c, err, "ListTicket")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *TicketHandler) MatchEvent(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req model.MatchEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	patronID := req.PatronID
	if patronID == "" {
		patronID = identity.PatronID
	}

	matched, err := h.service.MatchEvent(c, req.EventSubmission, patronID)
	if err != nil {
		writeError(c, err, "MatchEvent")
		return
	}
	c.JSON(http.StatusOK, matched)
}

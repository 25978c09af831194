package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-platform/internal/services"
	"ticket-platform/models"
)

type TicketHandler struct {
	tickets *services.TicketService
}

func NewTicketHandler(tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.tickets.GetTicketByID(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) GetTicketsByPayment(e *core.RequestEvent) error {
	tickets, err := h.tickets.GetTicketsByPaymentID(e.Request.Context(), e.Request.PathValue("paymentId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, tickets)
}

// UpdateTicketInfo - Change the owner contact of a ticket
func (h *TicketHandler) UpdateTicketInfo(e *core.RequestEvent) error {
	var update models.OwnerUpdate
	if err := e.BindBody(&update); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.tickets.UpdateTicketInfo(e.Request.Context(), e.Request.PathValue("ticketId"), update)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

// TerminateTicket - Void a ticket
func (h *TicketHandler) TerminateTicket(e *core.RequestEvent) error {
	ticket, err := h.tickets.TerminateTicket(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-platform/internal/services"
	"ticket-platform/internal/services/gateway"
	"ticket-platform/models"
)

type PaymentHandler struct {
	checkout *services.CheckoutService
	payments *services.PaymentStore
	// sandbox is set only when the sandbox gateway is in use.
	sandbox *gateway.SandboxAdapter
}

func NewPaymentHandler(checkout *services.CheckoutService, payments *services.PaymentStore, sandbox *gateway.SandboxAdapter) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		payments: payments,
		sandbox:  sandbox,
	}
}

// Checkout - Create a pending payment from a cart
func (h *PaymentHandler) Checkout(e *core.RequestEvent) error {
	var cart models.Cart
	if err := e.BindBody(&cart); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	payment, err := h.checkout.Checkout(e.Request.Context(), cart)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, payment)
}

type StripeSessionRequest struct {
	PaymentID   string              `json:"payment_id"`
	Tickets     []models.TicketSpec `json:"tickets"`
	ApprovedURL string              `json:"approved_url"`
	CancelURL   string              `json:"cancel_url"`
}

// CreateStripeSession - Open the hosted checkout page and stage tickets
func (h *PaymentHandler) CreateStripeSession(e *core.RequestEvent) error {
	var req StripeSessionRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.PaymentID == "" || req.ApprovedURL == "" || req.CancelURL == "" {
		return apis.NewBadRequestError("payment_id, approved_url and cancel_url are required", nil)
	}

	result, err := h.checkout.CreateStripeSession(e.Request.Context(), req.PaymentID, req.Tickets, req.ApprovedURL, req.CancelURL)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// ValidateStripeSession - Settle a payment against the gateway
func (h *PaymentHandler) ValidateStripeSession(e *core.RequestEvent) error {
	result, err := h.checkout.ValidateStripeSession(e.Request.Context(), e.Request.PathValue("paymentId"))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// GetPayment - Get payment details
func (h *PaymentHandler) GetPayment(e *core.RequestEvent) error {
	payment, err := h.payments.GetPaymentByID(e.Request.Context(), e.Request.PathValue("paymentId"))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) ListPayments(e *core.RequestEvent) error {
	page, err := h.payments.ListPayments(e.Request.Context(), paginationFilter(e))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, page)
}

func (h *PaymentHandler) ListPaymentsByUser(e *core.RequestEvent) error {
	page, err := h.payments.ListPaymentsByUser(e.Request.Context(), e.Request.PathValue("userId"), paginationFilter(e))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, page)
}

func (h *PaymentHandler) ListPaymentsByEvent(e *core.RequestEvent) error {
	page, err := h.payments.ListPaymentsByEvent(e.Request.Context(), e.Request.PathValue("eventId"), paginationFilter(e))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, page)
}

// SimulatePayment - Settle a sandbox session (for testing)
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	if h.sandbox == nil {
		return apis.NewNotFoundError("Sandbox gateway is not enabled", nil)
	}

	var req struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Status == "" {
		req.Status = gateway.IntentSucceeded
	}

	if err := h.sandbox.Simulate(req.SessionID, req.Status); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment simulation applied", "status": req.Status})
}

// paginationFilter reads page, size, take_all, order and search from the query string.
func paginationFilter(e *core.RequestEvent) models.PaginationFilter {
	q := e.Request.URL.Query()
	f := models.NewPaginationFilter()

	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = v
	}
	if v, err := strconv.Atoi(q.Get("size")); err == nil {
		f.Size = v
	}
	if v, err := strconv.ParseBool(q.Get("take_all")); err == nil {
		f.TakeAll = v
	}
	if v := q.Get("order"); v != "" {
		f.Order = v
	}
	f.Search = q.Get("search")

	return f.Normalize()
}

package status

import (
	"errors"
	"fmt"
)

// Categories. Every error returned by the checkout services wraps exactly one
// of these, so callers branch with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrGateway    = errors.New("gateway error")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrEmptyCart            = fmt.Errorf("checkout: cart is empty: %w", ErrValidation)
	ErrInvalidTicketSpec    = fmt.Errorf("ticket: owner name, email and phone are required: %w", ErrValidation)
	ErrInvalidDiscount      = fmt.Errorf("checkout: discount must be between 0 and 100: %w", ErrValidation)
	ErrInsufficientCapacity = fmt.Errorf("event: not enough tickets left: %w", ErrValidation)
	ErrTicketCountMismatch  = fmt.Errorf("ticket: ticket count does not match payment quantity: %w", ErrValidation)
	ErrEventMismatch        = fmt.Errorf("ticket: ticket event does not match payment event: %w", ErrValidation)
	ErrInvalidCustomer      = fmt.Errorf("checkout: customer name, email and phone are required: %w", ErrValidation)
	ErrTicketsNotStaged     = fmt.Errorf("payment: no tickets staged for payment: %w", ErrValidation)

	ErrPaymentNotFound  = fmt.Errorf("payment: payment not found: %w", ErrNotFound)
	ErrTicketNotFound   = fmt.Errorf("ticket: ticket not found: %w", ErrNotFound)
	ErrEventNotFound    = fmt.Errorf("event: event not found: %w", ErrNotFound)
	ErrInvalidReference = fmt.Errorf("ticket: referenced event does not exist: %w", ErrNotFound)

	ErrGatewayTimeout  = fmt.Errorf("gateway: request timed out: %w", ErrGateway)
	ErrGatewayOpen     = fmt.Errorf("gateway: circuit breaker is open: %w", ErrGateway)
	ErrSessionMissing  = fmt.Errorf("gateway: payment has no checkout session: %w", ErrGateway)
	ErrSessionNotFound = fmt.Errorf("gateway: checkout session not found: %w", ErrGateway)

	ErrPaymentNotPending    = fmt.Errorf("payment: payment is no longer pending: %w", ErrConflict)
	ErrTicketsAlreadyStaged = fmt.Errorf("payment: tickets already staged for payment: %w", ErrConflict)
	ErrLockNotAcquired      = fmt.Errorf("payment: validation already in progress: %w", ErrConflict)
)

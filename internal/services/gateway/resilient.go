package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticket-platform/internal/status"
	"ticket-platform/models"
	"ticket-platform/monitoring"
	"ticket-platform/utils"
)

// Resilient bounds every call of the wrapped gateway with a timeout and a
// circuit breaker, and maps failures onto status.ErrGateway.
type Resilient struct {
	next    Gateway
	timeout time.Duration
	breaker *utils.CircuitBreaker
	monitor *monitoring.Monitor
}

func NewResilient(next Gateway, timeout time.Duration, monitor *monitoring.Monitor, opts ...utils.BreakerOption) *Resilient {
	opts = append(opts, utils.WithStateChange(func(name string, from, to utils.State) {
		slog.Warn("gateway circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		monitor.SetBreakerState(name, int(to))
	}))

	return &Resilient{
		next:    next,
		timeout: timeout,
		breaker: utils.NewCircuitBreaker(string(next.Provider()), opts...),
		monitor: monitor,
	}
}

func (r *Resilient) Provider() Provider {
	return r.next.Provider()
}

// Unwrap returns the wrapped gateway.
func (r *Resilient) Unwrap() Gateway {
	return r.next
}

func (r *Resilient) CreateHostedSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	out, err := r.call(ctx, "create_session", func(ctx context.Context) (any, error) {
		return r.next.CreateHostedSession(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Session), nil
}

func (r *Resilient) GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	out, err := r.call(ctx, "get_session", func(ctx context.Context) (any, error) {
		return r.next.GetSessionStatus(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return out.(*SessionStatus), nil
}

func (r *Resilient) GetPaymentMethodSummary(ctx context.Context, paymentIntentID string) (*models.PaymentMethodSummary, error) {
	out, err := r.call(ctx, "get_payment_method", func(ctx context.Context) (any, error) {
		return r.next.GetPaymentMethodSummary(ctx, paymentIntentID)
	})
	if err != nil {
		return nil, err
	}
	summary, _ := out.(*models.PaymentMethodSummary)
	return summary, nil
}

func (r *Resilient) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.breaker.Execute(ctx, func() (any, error) {
		return fn(ctx)
	})

	if err != nil {
		err = classify(ctx, op, err)
		r.monitor.TrackGatewayCall(string(r.Provider()), op, "error", time.Since(start))
		return nil, err
	}
	r.monitor.TrackGatewayCall(string(r.Provider()), op, "ok", time.Since(start))
	return out, nil
}

func classify(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, status.ErrGateway):
		return fmt.Errorf("gateway %s: %w", op, err)
	case errors.Is(err, utils.ErrOpenState), errors.Is(err, utils.ErrTooManyRequests):
		return fmt.Errorf("gateway %s: %w", op, status.ErrGatewayOpen)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("gateway %s: %w: %w", op, status.ErrGatewayTimeout, err)
	default:
		return fmt.Errorf("gateway %s: %w: %w", op, status.ErrGateway, err)
	}
}

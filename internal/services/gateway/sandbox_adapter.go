package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"ticket-platform/internal/status"
	"ticket-platform/models"
	"ticket-platform/utils"
)

type sandboxSession struct {
	request      SessionRequest
	intentID     string
	intentStatus string
}

// SandboxAdapter is an in-memory gateway for development. Sessions stay
// unpaid until Simulate settles them.
type SandboxAdapter struct {
	mu       sync.RWMutex
	sessions map[string]*sandboxSession
}

func NewSandboxAdapter() *SandboxAdapter {
	return &SandboxAdapter{sessions: make(map[string]*sandboxSession)}
}

func (a *SandboxAdapter) Provider() Provider {
	return ProviderSandbox
}

func (a *SandboxAdapter) CreateHostedSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	code, err := utils.GenerateCode(12)
	if err != nil {
		return nil, err
	}
	id := "cs_sandbox_" + code

	a.mu.Lock()
	a.sessions[id] = &sandboxSession{request: *req, intentStatus: "requires_payment_method"}
	a.mu.Unlock()

	redirect := req.SuccessURL
	if u, err := url.Parse(req.SuccessURL); err == nil {
		q := u.Query()
		q.Set("session_id", id)
		u.RawQuery = q.Encode()
		redirect = u.String()
	}

	return &Session{ID: id, URL: redirect}, nil
}

func (a *SandboxAdapter) GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("sandbox session %s: %w", sessionID, status.ErrSessionNotFound)
	}
	return &SessionStatus{SessionID: sessionID, PaymentIntentID: s.intentID, IntentStatus: s.intentStatus}, nil
}

func (a *SandboxAdapter) GetPaymentMethodSummary(ctx context.Context, paymentIntentID string) (*models.PaymentMethodSummary, error) {
	if paymentIntentID == "" {
		return nil, nil
	}
	return &models.PaymentMethodSummary{Brand: "visa", Last4: "4242"}, nil
}

// Simulate sets the intent status a session will report.
func (a *SandboxAdapter) Simulate(sessionID, intentStatus string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return fmt.Errorf("sandbox session %s: %w", sessionID, status.ErrSessionNotFound)
	}

	if s.intentID == "" {
		code, err := utils.GenerateCode(12)
		if err != nil {
			return err
		}
		s.intentID = "pi_sandbox_" + code
	}
	s.intentStatus = intentStatus
	return nil
}

// LineItems returns the items a session was opened with.
func (a *SandboxAdapter) LineItems(sessionID string) []LineItem {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if s, ok := a.sessions[sessionID]; ok {
		return append([]LineItem(nil), s.request.LineItems...)
	}
	return nil
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/models"
)

// memStore is an in-memory TicketStore whose guarded writes are atomic under mu.
type memStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket

	readErr     error
	redeemErr   error
	collisions  int
	beforeWrite func()
}

func newMemStore(tickets ...*models.Ticket) *memStore {
	s := &memStore{tickets: map[string]*models.Ticket{}}
	for _, t := range tickets {
		s.tickets[t.ID] = t
	}
	return s
}

func clone(t *models.Ticket) *models.Ticket {
	c := *t
	if t.Issue != nil {
		issue := *t.Issue
		c.Issue = &issue
	}
	if t.Redemption != nil {
		r := *t.Redemption
		c.Redemption = &r
	}
	return &c
}

func (s *memStore) find(match func(*models.Ticket) bool) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	for _, t := range s.tickets {
		if match(t) {
			return clone(t), nil
		}
	}
	return nil, nil
}

func (s *memStore) CreatePending(_ context.Context, t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.PaymentSessionID == t.PaymentSessionID {
			return apperrors.ErrConflict
		}
	}
	t.Status = models.StatusPending
	s.tickets[t.ID] = clone(t)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	return s.find(func(t *models.Ticket) bool { return t.ID == id })
}

func (s *memStore) GetBySessionID(_ context.Context, sessionID string) (*models.Ticket, error) {
	return s.find(func(t *models.Ticket) bool { return t.PaymentSessionID == sessionID })
}

func (s *memStore) GetByVerificationCode(_ context.Context, code string) (*models.Ticket, error) {
	return s.find(func(t *models.Ticket) bool { return t.VerificationCode() == code })
}

func (s *memStore) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	t, err := s.GetByVerificationCode(ctx, code)
	return t != nil, err
}

func (s *memStore) Complete(_ context.Context, id string, c models.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collisions > 0 {
		s.collisions--
		return apperrors.ErrCodeCollision
	}
	t, ok := s.tickets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if t.Status != models.StatusPending {
		return apperrors.ErrNotPending
	}
	t.Status = models.StatusCompleted
	t.Issue = &models.Issue{VerificationCode: c.VerificationCode, CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt}
	if c.PayerEmail != "" {
		t.PayerEmail = c.PayerEmail
	}
	if c.PayerName != "" {
		t.PayerName = c.PayerName
	}
	return nil
}

func (s *memStore) MarkRedeemed(_ context.Context, id string, at time.Time) (*models.Ticket, error) {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redeemErr != nil {
		return nil, s.redeemErr
	}
	t, ok := s.tickets[id]
	if !ok || t.Status != models.StatusCompleted || t.Redemption != nil {
		return nil, apperrors.ErrAlreadyRedeemed
	}
	t.Redemption = &models.Redemption{RedeemedAt: at}
	return clone(t), nil
}

func (s *memStore) MarkFailed(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if t.Status != models.StatusPending {
		return apperrors.ErrNotPending
	}
	t.Status = models.StatusFailed
	t.FailureReason = reason
	return nil
}

func (s *memStore) GetStalePending(_ context.Context, cutoff time.Time, limit int) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, t := range s.tickets {
		if t.Status == models.StatusPending && t.RequestedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *clone(t))
		}
	}
	return out, nil
}

func (s *memStore) get(id string) *models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.tickets[id])
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if s := args.Get(0); s != nil {
		return s.(*models.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyTicketIssued(ctx context.Context, ev models.TicketIssuedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

type fakePrices struct {
	current *models.PriceConfig
	err     error
}

func (f *fakePrices) Current(context.Context) (*models.PriceConfig, error) { return f.current, f.err }

func (f *fakePrices) Set(_ context.Context, pc *models.PriceConfig) error {
	if f.err != nil {
		return f.err
	}
	f.current = pc
	return nil
}

func (f *fakePrices) Unset(context.Context) error {
	f.current = nil
	return f.err
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/external"
	"gatepass/internal/models"
	"gatepass/internal/service"
)

const webhookSecret = "whsec_test"

type fakeStore struct {
	mu         sync.Mutex
	tickets    map[string]*models.Ticket
	sessionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tickets: map[string]*models.Ticket{}}
}

func (s *fakeStore) find(match func(*models.Ticket) bool) *models.Ticket {
	for _, t := range s.tickets {
		if match(t) {
			c := *t
			return &c
		}
	}
	return nil
}

func (s *fakeStore) CreatePending(_ context.Context, t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Status = models.StatusPending
	c := *t
	s.tickets[t.ID] = &c
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(t *models.Ticket) bool { return t.ID == id }), nil
}

func (s *fakeStore) GetBySessionID(_ context.Context, sessionID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	return s.find(func(t *models.Ticket) bool { return t.PaymentSessionID == sessionID }), nil
}

func (s *fakeStore) GetByVerificationCode(_ context.Context, code string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(t *models.Ticket) bool { return t.VerificationCode() == code }), nil
}

func (s *fakeStore) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	t, err := s.GetByVerificationCode(ctx, code)
	return t != nil, err
}

func (s *fakeStore) Complete(_ context.Context, id string, c models.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if t.Status != models.StatusPending {
		return apperrors.ErrNotPending
	}
	t.Status = models.StatusCompleted
	t.Issue = &models.Issue{VerificationCode: c.VerificationCode, CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt}
	return nil
}

func (s *fakeStore) MarkRedeemed(_ context.Context, id string, at time.Time) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Redemption != nil {
		return nil, apperrors.ErrAlreadyRedeemed
	}
	t.Redemption = &models.Redemption{RedeemedAt: at}
	c := *t
	return &c, nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id, reason string) error {
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

func (s *fakeStore) GetStalePending(context.Context, time.Time, int) ([]models.Ticket, error) {
	return nil, nil
}

type fakePrices struct {
	current *models.PriceConfig
}

func (f *fakePrices) Current(context.Context) (*models.PriceConfig, error) { return f.current, nil }
func (f *fakePrices) Set(_ context.Context, pc *models.PriceConfig) error  { f.current = pc; return nil }
func (f *fakePrices) Unset(context.Context) error                          { f.current = nil; return nil }

type stubCheckout struct {
	err error
	n   int
}

func (s *stubCheckout) CreateCheckoutSession(_ context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.n++
	id := fmt.Sprintf("cs_test_%d", s.n)
	return &models.CheckoutSession{SessionID: id, URL: "https://pay.example.com/" + id}, nil
}

type testEnv struct {
	router   *gin.Engine
	store    *fakeStore
	checkout *stubCheckout
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{store: newFakeStore(), checkout: &stubCheckout{}}
	services := service.NewServices(service.Deps{
		Tickets:  env.store,
		Prices:   &fakePrices{},
		Checkout: env.checkout,
		Options:  service.Options{FrontendBaseURL: "https://tickets.example.com"},
	})
	h := NewHandlers(services, external.NewWebhookVerifier(webhookSecret))

	r := gin.New()
	api := r.Group("/api")
	{
		api.POST("/purchases", h.CreatePurchase)
		api.GET("/purchases", h.GetPurchase)
		api.POST("/payments/webhook", h.PaymentWebhook)
		api.POST("/tickets/validate", h.ValidateTicket)
		api.GET("/price", h.GetPrice)
		api.PUT("/admin/price", h.SetPrice)
		api.DELETE("/admin/price", h.UnsetPrice)
		api.GET("/admin/tickets/search", h.SearchTickets)
	}
	env.router = r
	return env
}

func (e *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) webhook(eventType, sessionID string) *httptest.ResponseRecorder {
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","type":%q,"data":{"object":{"id":%q,"amount_total":2500,"currency":"usd","customer_details":{"email":"payer@example.com","name":"Ada"}}}}`,
		eventType, sessionID))
	return e.do(http.MethodPost, "/api/payments/webhook", payload, map[string]string{
		external.SignatureHeader: external.SignPayload(webhookSecret, payload, time.Now()),
	})
}

func (e *testEnv) purchase(t *testing.T) models.CreatePurchaseResponse {
	t.Helper()
	w := e.do(http.MethodPost, "/api/purchases", gin.H{"email": "buyer@example.com", "amount": 2500}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.CreatePurchaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeVerdict(t *testing.T, w *httptest.ResponseRecorder) models.ValidationResponse {
	t.Helper()
	var resp models.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreatePurchase(t *testing.T) {
	env := setupRouter(t)

	resp := env.purchase(t)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.Equal(t, "https://pay.example.com/cs_test_1", resp.SessionURL)

	w := env.do(http.MethodGet, "/api/purchases?sessionId=cs_test_1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var details models.PurchaseDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &details))
	assert.Equal(t, models.StatusPending, details.Status)
	assert.Equal(t, int64(2500), details.Amount)
}

func TestCreatePurchaseRejected(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{"bad email", gin.H{"email": "nope", "amount": 2500}, http.StatusBadRequest},
		{"below minimum", gin.H{"email": "buyer@example.com", "amount": 50}, http.StatusBadRequest},
		{"malformed json", []byte(`{"email":`), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRouter(t)
			w := env.do(http.MethodPost, "/api/purchases", tt.body, nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Empty(t, env.store.tickets)
		})
	}
}

func TestCreatePurchaseProviderFailure(t *testing.T) {
	env := setupRouter(t)
	env.checkout.err = fmt.Errorf("%w: status 503", apperrors.ErrPaymentProvider)

	w := env.do(http.MethodPost, "/api/purchases", gin.H{"email": "buyer@example.com", "amount": 2500}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "503")
}

func TestGetPurchase(t *testing.T) {
	env := setupRouter(t)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/purchases", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/purchases?sessionId=cs_nope", nil, nil).Code)

	p := env.purchase(t)
	require.Equal(t, http.StatusOK, env.webhook(models.PaymentEventExpired, p.SessionID).Code)
	assert.Equal(t, http.StatusConflict, env.do(http.MethodGet, "/api/purchases?sessionId="+p.SessionID, nil, nil).Code)
}

func TestPaymentWebhook(t *testing.T) {
	env := setupRouter(t)
	p := env.purchase(t)

	t.Run("bad signature", func(t *testing.T) {
		payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"` + p.SessionID + `"}}}`)
		w := env.do(http.MethodPost, "/api/payments/webhook", payload, map[string]string{
			external.SignatureHeader: external.SignPayload("wrong", payload, time.Now()),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		ticket, _ := env.store.GetBySessionID(context.Background(), p.SessionID)
		assert.Equal(t, models.StatusPending, ticket.Status)
	})

	t.Run("unknown session", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.webhook(models.PaymentEventCompleted, "cs_unknown").Code)
	})

	t.Run("completed", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.webhook(models.PaymentEventCompleted, p.SessionID).Code)

		ticket, _ := env.store.GetBySessionID(context.Background(), p.SessionID)
		assert.Equal(t, models.StatusCompleted, ticket.Status)
		assert.Len(t, ticket.VerificationCode(), 7)
	})

	t.Run("repeated delivery", func(t *testing.T) {
		before, _ := env.store.GetBySessionID(context.Background(), p.SessionID)
		assert.Equal(t, http.StatusOK, env.webhook(models.PaymentEventCompleted, p.SessionID).Code)

		after, _ := env.store.GetBySessionID(context.Background(), p.SessionID)
		assert.Equal(t, before.VerificationCode(), after.VerificationCode())
	})
}

func TestPaymentWebhookStorageFailure(t *testing.T) {
	env := setupRouter(t)
	p := env.purchase(t)

	env.store.sessionErr = errors.New("db unreachable")
	for _, eventType := range []string{models.PaymentEventCompleted, models.PaymentEventExpired} {
		w := env.webhook(eventType, p.SessionID)
		assert.Equal(t, http.StatusInternalServerError, w.Code, eventType)
		assert.NotContains(t, w.Body.String(), "db unreachable")
	}

	env.store.sessionErr = nil
	ticket, err := env.store.GetBySessionID(context.Background(), p.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, ticket.Status)

	assert.Equal(t, http.StatusOK, env.webhook(models.PaymentEventCompleted, p.SessionID).Code)
	ticket, err = env.store.GetBySessionID(context.Background(), p.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, ticket.Status)
}

func TestValidateTicket(t *testing.T) {
	env := setupRouter(t)
	p := env.purchase(t)
	require.Equal(t, http.StatusOK, env.webhook(models.PaymentEventCompleted, p.SessionID).Code)

	ticket, _ := env.store.GetBySessionID(context.Background(), p.SessionID)
	code := ticket.VerificationCode()

	w := env.do(http.MethodPost, "/api/tickets/validate", gin.H{"verificationId": code}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeVerdict(t, w)
	assert.True(t, first.Valid)
	assert.Equal(t, models.ReasonValid, first.ReasonCode)
	assert.Equal(t, models.ActionRedeemed, first.ActionTaken)
	assert.Equal(t, ticket.ID, first.TicketID)
	assert.True(t, first.Redeemed)
	assert.NotEmpty(t, first.RedeemedTime)

	w = env.do(http.MethodPost, "/api/tickets/validate", gin.H{"verificationId": code}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeVerdict(t, w)
	assert.False(t, second.Valid)
	assert.Equal(t, models.ReasonAlreadyRedeemed, second.ReasonCode)
	assert.Equal(t, models.ActionNone, second.ActionTaken)
}

func TestValidateTicketRejections(t *testing.T) {
	env := setupRouter(t)

	tests := []struct {
		name string
		body any
		want int
		code models.ReasonCode
	}{
		{"missing id", gin.H{}, http.StatusBadRequest, models.ReasonMissingID},
		{"malformed body", []byte(`not json`), http.StatusBadRequest, models.ReasonMissingID},
		{"unknown code", gin.H{"verificationId": "ZZZ9999"}, http.StatusNotFound, models.ReasonNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/tickets/validate", tt.body, nil)
			assert.Equal(t, tt.want, w.Code)
			v := decodeVerdict(t, w)
			assert.False(t, v.Valid)
			assert.Equal(t, tt.code, v.ReasonCode)
			assert.Equal(t, models.ActionNone, v.ActionTaken)
		})
	}
}

func TestPrices(t *testing.T) {
	env := setupRouter(t)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/price", nil, nil).Code)

	w := env.do(http.MethodPut, "/api/admin/price", []byte(`{"price":"3000","eventName":"Summer Gala"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/price", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pc models.PriceConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pc))
	assert.Equal(t, int64(3000), pc.PriceInCents)
	assert.Equal(t, "Summer Gala", pc.EventName)

	assert.Equal(t, http.StatusBadRequest,
		env.do(http.MethodPut, "/api/admin/price", gin.H{"price": 0, "eventName": "x"}, nil).Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/admin/price", nil, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/admin/price", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/price", nil, nil).Code)
}

func TestSearchTicketsDisabled(t *testing.T) {
	env := setupRouter(t)

	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/api/admin/tickets/search?q=ada", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/admin/tickets/search?size=0", nil, nil).Code)
}

package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gatepass/internal/models"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyTicketIssued(ctx context.Context, ev models.TicketIssuedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) IndexTicket(ctx context.Context, t *models.Ticket) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockIndex) MarkRedeemed(ctx context.Context, ticketID string, redeemedAt time.Time) error {
	return m.Called(ctx, ticketID, redeemedAt).Error(0)
}

type stubTickets map[string]*models.Ticket

func (s stubTickets) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	return s[id], nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestProcessTicketIssued(t *testing.T) {
	ticket := &models.Ticket{ID: "t-1", Status: models.StatusCompleted}
	ev := models.TicketIssuedEvent{TicketID: "t-1", VerificationCode: "ABC2345", Recipient: "buyer@example.com"}

	notifier := &mockNotifier{}
	notifier.On("NotifyTicketIssued", mock.Anything, ev).Return(nil).Once()
	index := &mockIndex{}
	index.On("IndexTicket", mock.Anything, ticket).Return(nil).Once()

	h := NewHandlers(stubTickets{"t-1": ticket}, notifier, index)
	require.NoError(t, h.processTicketIssued(context.Background(), mustJSON(t, ev)))

	notifier.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestProcessTicketIssuedMailFailure(t *testing.T) {
	ev := models.TicketIssuedEvent{TicketID: "t-1"}

	notifier := &mockNotifier{}
	notifier.On("NotifyTicketIssued", mock.Anything, ev).Return(errors.New("dial tcp: i/o timeout")).Once()
	index := &mockIndex{}

	h := NewHandlers(stubTickets{}, notifier, index)
	assert.Error(t, h.processTicketIssued(context.Background(), mustJSON(t, ev)))
	index.AssertNotCalled(t, "IndexTicket", mock.Anything, mock.Anything)
}

func TestProcessTicketIssuedIndexFailureIsNotRetried(t *testing.T) {
	ticket := &models.Ticket{ID: "t-1"}
	index := &mockIndex{}
	index.On("IndexTicket", mock.Anything, ticket).Return(errors.New("es: 500")).Once()

	h := NewHandlers(stubTickets{"t-1": ticket}, nil, index)
	assert.NoError(t, h.processTicketIssued(context.Background(), mustJSON(t, models.TicketIssuedEvent{TicketID: "t-1"})))
	index.AssertExpectations(t)
}

func TestProcessMalformedMessages(t *testing.T) {
	h := NewHandlers(stubTickets{}, &mockNotifier{}, &mockIndex{})
	ctx := context.Background()

	assert.NoError(t, h.processTicketIssued(ctx, []byte("{")))
	assert.NoError(t, h.processTicketRedeemed(ctx, []byte("{")))
	assert.NoError(t, h.processPurchaseFailed(ctx, []byte("{")))
}

func TestProcessTicketRedeemed(t *testing.T) {
	at := time.Date(2024, 1, 10, 20, 30, 0, 0, time.UTC)
	index := &mockIndex{}
	index.On("MarkRedeemed", mock.Anything, "t-1", at).Return(nil).Once()

	h := NewHandlers(stubTickets{}, nil, index)
	data := mustJSON(t, models.TicketRedeemedEvent{TicketID: "t-1", VerificationCode: "ABC2345", RedeemedAt: at})
	require.NoError(t, h.processTicketRedeemed(context.Background(), data))
	index.AssertExpectations(t)

	failing := &mockIndex{}
	failing.On("MarkRedeemed", mock.Anything, "t-1", at).Return(errors.New("es: 503")).Once()
	h = NewHandlers(stubTickets{}, nil, failing)
	assert.Error(t, h.processTicketRedeemed(context.Background(), data))
}

func TestProcessWithoutIndex(t *testing.T) {
	h := NewHandlers(stubTickets{}, nil, nil)
	data := mustJSON(t, models.TicketRedeemedEvent{TicketID: "t-1", RedeemedAt: time.Now()})
	assert.NoError(t, h.processTicketRedeemed(context.Background(), data))
	assert.NoError(t, h.processTicketIssued(context.Background(), mustJSON(t, models.TicketIssuedEvent{TicketID: "t-1"})))
}

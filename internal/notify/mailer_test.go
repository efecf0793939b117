package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/models"
)

type captureSender struct {
	sent []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func issuedEvent() models.TicketIssuedEvent {
	return models.TicketIssuedEvent{
		TicketID:         "t-1",
		VerificationCode: "ABC2345",
		Amount:           2500,
		Currency:         "eur",
		EventName:        "Spring Gala",
		Recipient:        "buyer@example.com",
		VerifyURL:        "https://tickets.example.com/verify?id=ABC2345",
		IssuedAt:         time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC),
		ExpiresAt:        time.Date(2024, 1, 11, 5, 0, 0, 0, time.UTC),
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "25.00 EUR", FormatAmount(2500, "eur"))
	assert.Equal(t, "1.00 USD", FormatAmount(100, "usd"))
	assert.Equal(t, "12.34 USD", FormatAmount(1234, "USD"))
}

func TestQRCodeURL(t *testing.T) {
	assert.Equal(t,
		"https://api.qrserver.com/v1/create-qr-code/?size=250x250&data=https%3A%2F%2Ftickets.example.com%2Fverify%3Fid%3DABC2345",
		QRCodeURL("https://tickets.example.com/verify?id=ABC2345"))
}

func TestRender(t *testing.T) {
	msg, err := Render(issuedEvent())
	require.NoError(t, err)

	assert.Equal(t, "buyer@example.com", msg.To)
	assert.Equal(t, "Your Ticket for Spring Gala", msg.Subject)
	assert.Contains(t, msg.HTML, "25.00 EUR")
	assert.Contains(t, msg.HTML, "<strong>ABC2345</strong>")
	assert.Contains(t, msg.HTML, "data=https%3A%2F%2Ftickets.example.com%2Fverify%3Fid%3DABC2345")
	assert.Contains(t, msg.Plain, "https://tickets.example.com/verify?id=ABC2345")
	assert.Contains(t, msg.Plain, "Jan 11, 2024 05:00 UTC")
}

func TestRenderEscapesEventName(t *testing.T) {
	ev := issuedEvent()
	ev.EventName = "<script>alert(1)</script>"

	msg, err := Render(ev)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestMailerNotify(t *testing.T) {
	sender := &captureSender{}
	m := NewMailer(sender)

	require.NoError(t, m.NotifyTicketIssued(context.Background(), issuedEvent()))
	require.Len(t, sender.sent, 1)

	sender.err = errors.New("relay refused")
	assert.Error(t, m.NotifyTicketIssued(context.Background(), issuedEvent()))
}

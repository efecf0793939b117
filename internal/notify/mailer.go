// Package notify delivers issued tickets to buyers by email.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/domodwyer/mailyak/v3"
	"github.com/shopspring/decimal"

	"gatepass/internal/logger"
	"gatepass/internal/models"
)

const qrServiceURL = "https://api.qrserver.com/v1/create-qr-code/?size=250x250&data="

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	Timeout     time.Duration
}

// Message is a rendered ticket email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Plain   string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders ticket emails and hands them to a Sender.
type Mailer struct {
	sender Sender
}

func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

// NotifyTicketIssued sends the ticket email for ev.
func (m *Mailer) NotifyTicketIssued(ctx context.Context, ev models.TicketIssuedEvent) error {
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send ticket email to %s: %w", ev.Recipient, err)
	}

	logger.WithContext(ctx).Info("Ticket email sent",
		"ticket_id", ev.TicketID, "recipient", ev.Recipient)
	return nil
}

var htmlTemplate = template.Must(template.New("ticket").Parse(`<html>
<body style="font-family: Arial, sans-serif; text-align: center; color: #333;">
  <h2>Thank you for your purchase!</h2>
  <p>We received your payment of {{.Amount}}{{if .EventName}} for {{.EventName}}{{end}}.</p>
  <p>This QR code is your ticket. It is valid until {{.ExpiresAt}}.</p>
  <img src="{{.QRCodeURL}}" alt="Your ticket QR code" style="max-width: 250px; height: auto; margin: 20px auto; display: block;">
  <p>Verification ID: <strong>{{.Code}}</strong></p>
  <p>You can also verify your ticket directly by visiting: <a href="{{.VerifyURL}}">{{.VerifyURL}}</a></p>
  <p style="font-size: 0.8em; color: #666;">Please keep this email safe. For any questions, contact support.</p>
</body>
</html>`))

type templateData struct {
	Amount    string
	EventName string
	ExpiresAt string
	QRCodeURL string
	Code      string
	VerifyURL string
}

// Render builds the ticket email for ev.
func Render(ev models.TicketIssuedEvent) (Message, error) {
	data := templateData{
		Amount:    FormatAmount(ev.Amount, ev.Currency),
		EventName: ev.EventName,
		ExpiresAt: ev.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
		QRCodeURL: QRCodeURL(ev.VerifyURL),
		Code:      ev.VerificationCode,
		VerifyURL: ev.VerifyURL,
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render ticket email: %w", err)
	}

	subject := "Your Payment Confirmation & Ticket"
	if ev.EventName != "" {
		subject = "Your Ticket for " + ev.EventName
	}

	plain := fmt.Sprintf("Thank you for your purchase of %s.\nVerification ID: %s\nVerify: %s\nValid until %s.\n",
		data.Amount, data.Code, data.VerifyURL, data.ExpiresAt)

	return Message{
		To:      ev.Recipient,
		Subject: subject,
		HTML:    buf.String(),
		Plain:   plain,
	}, nil
}

// FormatAmount renders minor units as a display amount, e.g. 2500 usd -> "25.00 USD".
func FormatAmount(minor int64, currency string) string {
	return decimal.New(minor, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}

// QRCodeURL returns an image link encoding verifyURL.
func QRCodeURL(verifyURL string) string {
	return qrServiceURL + url.QueryEscape(verifyURL)
}

// SMTPSender sends through an SMTP relay using mailyak.
type SMTPSender struct {
	cfg  Config
	auth smtp.Auth
}

func NewSMTPSender(cfg Config) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg, auth: auth}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	mail := mailyak.New(net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)), s.auth)
	mail.To(msg.To)
	mail.From(s.cfg.FromAddress)
	if s.cfg.FromName != "" {
		mail.FromName(s.cfg.FromName)
	}
	mail.Subject(msg.Subject)
	mail.HTML().Set(msg.HTML)
	mail.Plain().Set(msg.Plain)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	// mailyak has no context support
	done := make(chan error, 1)
	go func() { done <- mail.Send() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/models"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on every webhook call.
const SignatureHeader = "Payment-Signature"

// DefaultTolerance is how old a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

type webhookPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID              string `json:"id"`
			AmountTotal     int64  `json:"amount_total"`
			Currency        string `json:"currency"`
			CustomerEmail   string `json:"customer_email"`
			CustomerDetails struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"customer_details"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookVerifier authenticates provider callbacks and decodes them.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (v *WebhookVerifier) WithClock(now func() time.Time) *WebhookVerifier {
	v.now = now
	return v
}

// Verify checks the signature header against payload and returns the decoded event.
// Any failure wraps apperrors.ErrInvalidSignature.
func (v *WebhookVerifier) Verify(payload []byte, header string) (*models.PaymentEvent, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: webhook secret not configured", apperrors.ErrInvalidSignature)
	}

	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return nil, err
	}

	signedAt := time.Unix(ts, 0)
	if age := v.now().Sub(signedAt); age > v.tolerance || age < -v.tolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", apperrors.ErrInvalidSignature)
	}

	expected := computeSignature(v.secret, ts, payload)
	matched := false
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: signature mismatch", apperrors.ErrInvalidSignature)
	}

	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", apperrors.ErrInvalidSignature, err)
	}

	obj := p.Data.Object
	email := obj.CustomerDetails.Email
	if email == "" {
		email = obj.CustomerEmail
	}

	ev := &models.PaymentEvent{
		Type:       p.Type,
		SessionID:  obj.ID,
		PayerEmail: email,
		PayerName:  obj.CustomerDetails.Name,
		AmountPaid: obj.AmountTotal,
		Currency:   obj.Currency,
	}
	if p.Created > 0 {
		ev.CreatedAt = time.Unix(p.Created, 0).UTC()
	}
	return ev, nil
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing %s header", apperrors.ErrInvalidSignature, SignatureHeader)
	}

	var (
		ts   int64
		sigs [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", apperrors.ErrInvalidSignature)
			}
			ts = n
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}

	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: incomplete signature header", apperrors.ErrInvalidSignature)
	}
	return ts, sigs, nil
}

func computeSignature(secret []byte, ts int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload builds a header value for payload, as the provider does.
func SignPayload(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature([]byte(secret), ts, payload)))
}

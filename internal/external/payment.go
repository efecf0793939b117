package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/models"
)

type PaymentClient struct {
	baseURL    string
	teamSlug   string
	password   string
	httpClient *http.Client
}

type PaymentConfig struct {
	BaseURL       string
	TeamSlug      string
	Password      string
	WebhookSecret string
	Timeout       time.Duration
}

type checkoutInitRequest struct {
	TeamSlug    string            `json:"teamSlug"`
	Token       string            `json:"token"`
	Amount      int64             `json:"amount"`
	OrderID     string            `json:"orderId"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	ProductName string            `json:"productName,omitempty"`
	Email       string            `json:"email,omitempty"`
	SuccessURL  string            `json:"successURL,omitempty"`
	FailURL     string            `json:"failURL,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

type checkoutInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	PaymentURL string `json:"paymentURL"`
	Message    string `json:"message,omitempty"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PaymentClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		teamSlug: cfg.TeamSlug,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (pc *PaymentClient) generateToken(params map[string]string) string {
	params["TeamSlug"] = pc.teamSlug
	params["Password"] = pc.password

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(params[key])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// CreateCheckoutSession opens a hosted checkout page for req.
// Every failure wraps apperrors.ErrPaymentProvider.
func (pc *PaymentClient) CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	token := pc.generateToken(map[string]string{
		"Amount":   strconv.FormatInt(req.Amount, 10),
		"Currency": req.Currency,
		"OrderId":  req.OrderID,
	})

	body, err := json.Marshal(checkoutInitRequest{
		TeamSlug:    pc.teamSlug,
		Token:       token,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		Currency:    req.Currency,
		Description: req.Description,
		ProductName: req.ProductName,
		Email:       req.Email,
		SuccessURL:  req.SuccessURL,
		FailURL:     req.CancelURL,
		Data:        req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		pc.baseURL+"/api/v1/PaymentInit/init", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: init checkout: %v", apperrors.ErrPaymentProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status %d: %s", apperrors.ErrPaymentProvider, resp.StatusCode, msg)
	}

	var result checkoutInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", apperrors.ErrPaymentProvider, err)
	}

	if !result.Success || result.PaymentID == "" || result.PaymentURL == "" {
		return nil, fmt.Errorf("%w: checkout init rejected: %s", apperrors.ErrPaymentProvider, result.Message)
	}

	return &models.CheckoutSession{
		SessionID: result.PaymentID,
		URL:       result.PaymentURL,
	}, nil
}

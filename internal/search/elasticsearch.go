package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/shopspring/decimal"

	"gatepass/internal/config"
	"gatepass/internal/models"
)

// TicketIndex keeps a searchable copy of issued tickets for the admin console.
// The database stays the source of truth.
type TicketIndex struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// ticketDocument is the indexed shape of a ticket
type ticketDocument struct {
	TicketID         string     `json:"ticket_id"`
	VerificationCode string     `json:"verification_code"`
	PayerEmail       string     `json:"payer_email"`
	PayerName        string     `json:"payer_name,omitempty"`
	EventName        string     `json:"event_name,omitempty"`
	AmountMinor      int64      `json:"amount_minor"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	Redeemed         bool       `json:"redeemed"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty"`
}

// NewTicketIndex creates the client and makes sure the index exists.
func NewTicketIndex(cfg config.ElasticsearchConfig) (*TicketIndex, error) {
	return newTicketIndex(cfg, nil)
}

func newTicketIndex(cfg config.ElasticsearchConfig, transport http.RoundTripper) (*TicketIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
		Transport:     transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	idx := &TicketIndex{client: es, config: cfg}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := idx.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return idx, nil
}

func (c *TicketIndex) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.config.Index}}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"ticket_id":         map[string]any{"type": "keyword"},
				"verification_code": map[string]any{"type": "keyword"},
				"payer_email": map[string]any{
					"type":     "text",
					"analyzer": "simple",
					"fields":   map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
				},
				"payer_name":   map[string]any{"type": "text"},
				"event_name":   map[string]any{"type": "text", "fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}}},
				"amount_minor": map[string]any{"type": "long"},
				"amount":       map[string]any{"type": "keyword"},
				"currency":     map[string]any{"type": "keyword"},
				"issued_at":    map[string]any{"type": "date"},
				"expires_at":   map[string]any{"type": "date"},
				"redeemed":     map[string]any{"type": "boolean"},
				"redeemed_at":  map[string]any{"type": "date"},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexTicket upserts the document of a completed ticket.
func (c *TicketIndex) IndexTicket(ctx context.Context, t *models.Ticket) error {
	if t.Issue == nil {
		return fmt.Errorf("ticket %s is not issued", t.ID)
	}

	doc := ticketDocument{
		TicketID:         t.ID,
		VerificationCode: t.Issue.VerificationCode,
		PayerEmail:       t.PayerEmail,
		PayerName:        t.PayerName,
		EventName:        t.EventName,
		AmountMinor:      t.Amount,
		Amount:           decimal.New(t.Amount, -2).StringFixed(2),
		Currency:         strings.ToUpper(t.Currency),
		IssuedAt:         t.Issue.CreatedAt,
		ExpiresAt:        t.Issue.ExpiresAt,
	}
	if t.Redemption != nil {
		at := t.Redemption.RedeemedAt
		doc.Redeemed = true
		doc.RedeemedAt = &at
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket document: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: t.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index ticket: %s", res.String())
	}
	return nil
}

// MarkRedeemed applies a partial update to an indexed ticket.
func (c *TicketIndex) MarkRedeemed(ctx context.Context, ticketID string, redeemedAt time.Time) error {
	body, err := json.Marshal(map[string]any{
		"doc": map[string]any{
			"redeemed":    true,
			"redeemed_at": redeemedAt.UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	res, err := esapi.UpdateRequest{
		Index:      c.config.Index,
		DocumentID: ticketID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to update ticket: %s", res.String())
	}
	return nil
}

// Search matches query against payer email, payer name, event name and code.
func (c *TicketIndex) Search(ctx context.Context, query string, size int) (*models.TicketSearchResponse, error) {
	if size <= 0 || size > 100 {
		size = 20
	}

	q := map[string]any{"match_all": map[string]any{}}
	if query = strings.TrimSpace(query); query != "" {
		q = map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"term": map[string]any{"verification_code": map[string]any{"value": strings.ToUpper(query), "boost": 5}}},
					map[string]any{"multi_match": map[string]any{
						"query":  query,
						"fields": []string{"payer_email^2", "payer_name", "event_name"},
					}},
				},
				"minimum_should_match": 1,
			},
		}
	}

	body, err := json.Marshal(map[string]any{
		"query": q,
		"size":  size,
		"sort":  []any{"_score", map[string]any{"issued_at": "desc"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source ticketDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	out := &models.TicketSearchResponse{
		Total: response.Hits.Total.Value,
		Hits:  make([]models.TicketSearchHit, 0, len(response.Hits.Hits)),
	}
	for _, h := range response.Hits.Hits {
		d := h.Source
		out.Hits = append(out.Hits, models.TicketSearchHit{
			TicketID:         d.TicketID,
			VerificationCode: d.VerificationCode,
			PayerEmail:       d.PayerEmail,
			PayerName:        d.PayerName,
			EventName:        d.EventName,
			Amount:           d.Amount,
			Currency:         d.Currency,
			IssuedAt:         d.IssuedAt,
			ExpiresAt:        d.ExpiresAt,
			Redeemed:         d.Redeemed,
			RedeemedAt:       d.RedeemedAt,
		})
	}

	return out, nil
}

// HealthCheck pings the cluster.
func (c *TicketIndex) HealthCheck(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch unhealthy: %s", res.Status())
	}
	return nil
}

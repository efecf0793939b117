package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/database"
	apperrors "gatepass/internal/errors"
	"gatepass/internal/models"
)

const (
	sessionIDConstraint = "tickets_payment_session_id_key"
	codeConstraint      = "tickets_verification_code_key"
)

const ticketColumns = `
	id, payment_session_id, status, amount, currency, event_name,
	payer_email, payer_name, frontend_domain, requested_at, failure_reason,
	verification_code, created_at, expires_at, redeemed, redeemed_at`

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var (
		t              models.Ticket
		eventName      sql.NullString
		payerName      sql.NullString
		frontendDomain sql.NullString
		failureReason  sql.NullString
		code           sql.NullString
		createdAt      sql.NullTime
		expiresAt      sql.NullTime
		redeemed       bool
		redeemedAt     sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.PaymentSessionID,
		&t.Status,
		&t.Amount,
		&t.Currency,
		&eventName,
		&t.PayerEmail,
		&payerName,
		&frontendDomain,
		&t.RequestedAt,
		&failureReason,
		&code,
		&createdAt,
		&expiresAt,
		&redeemed,
		&redeemedAt,
	)
	if err != nil {
		return nil, err
	}

	t.EventName = eventName.String
	t.PayerName = payerName.String
	t.FrontendDomain = frontendDomain.String
	t.FailureReason = failureReason.String

	if code.Valid {
		t.Issue = &models.Issue{
			VerificationCode: code.String,
			CreatedAt:        createdAt.Time,
			ExpiresAt:        expiresAt.Time,
		}
	}
	if redeemed {
		t.Redemption = &models.Redemption{RedeemedAt: redeemedAt.Time}
	}

	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreatePending stores a new purchase intent.
func (r *TicketRepository) CreatePending(ctx context.Context, t *models.Ticket) error {
	query := `
		INSERT INTO tickets (id, payment_session_id, status, amount, currency, event_name,
		                     payer_email, frontend_domain, requested_at)
		VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.PaymentSessionID,
		t.Amount,
		t.Currency,
		nullString(t.EventName),
		t.PayerEmail,
		nullString(t.FrontendDomain),
		t.RequestedAt,
	)
	if database.IsUniqueViolation(err, sessionIDConstraint) {
		return fmt.Errorf("payment session %s already recorded: %w", t.PaymentSessionID, apperrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	t.Status = models.StatusPending
	return nil
}

func (r *TicketRepository) getOne(ctx context.Context, where string, arg any) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + where

	t, err := scanTicket(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *TicketRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Ticket, error) {
	return r.getOne(ctx, "payment_session_id = $1", sessionID)
}

func (r *TicketRepository) GetByVerificationCode(ctx context.Context, code string) (*models.Ticket, error) {
	return r.getOne(ctx, "verification_code = $1", code)
}

func (r *TicketRepository) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tickets WHERE verification_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check verification code: %w", err)
	}
	return exists, nil
}

// Complete moves a pending ticket to completed. Only the first caller wins.
func (r *TicketRepository) Complete(ctx context.Context, id string, c models.Completion) error {
	query := `
		UPDATE tickets
		SET status = 'completed',
		    verification_code = $2,
		    created_at = $3,
		    expires_at = $4,
		    payer_email = COALESCE(NULLIF($5::text, ''), payer_email),
		    payer_name = COALESCE(NULLIF($6::text, ''), payer_name)
		WHERE id = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query,
		id, c.VerificationCode, c.CreatedAt.UTC(), c.ExpiresAt.UTC(), c.PayerEmail, c.PayerName)
	if database.IsUniqueViolation(err, codeConstraint) {
		return apperrors.ErrCodeCollision
	}
	if err != nil {
		return fmt.Errorf("failed to complete ticket: %w", err)
	}

	return r.checkGuarded(ctx, res, id)
}

// MarkFailed moves a pending ticket to failed.
func (r *TicketRepository) MarkFailed(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = 'failed', failure_reason = $2 WHERE id = $1 AND status = 'pending'`,
		id, reason)
	if err != nil {
		return fmt.Errorf("failed to mark ticket failed: %w", err)
	}
	return r.checkGuarded(ctx, res, id)
}

func (r *TicketRepository) checkGuarded(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check ticket: %w", err)
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return apperrors.ErrNotPending
}

// MarkRedeemed atomically flips the redeemed flag of a completed ticket and
// returns the updated record. ErrAlreadyRedeemed means another caller got there first.
func (r *TicketRepository) MarkRedeemed(ctx context.Context, id string, redeemedAt time.Time) (*models.Ticket, error) {
	query := `
		UPDATE tickets
		SET redeemed = TRUE, redeemed_at = $2
		WHERE id = $1 AND status = 'completed' AND redeemed = FALSE
		RETURNING ` + ticketColumns

	t, err := scanTicket(r.db.QueryRowContext(ctx, query, id, redeemedAt.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrAlreadyRedeemed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}
	return t, nil
}

// GetStalePending returns pending tickets requested before cutoff, oldest first.
func (r *TicketRepository) GetStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = 'pending' AND requested_at < $1
		ORDER BY requested_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}

	return tickets, rows.Err()
}

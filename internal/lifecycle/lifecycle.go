// Package lifecycle holds the time rules of a ticket: when it expires and
// whether it can be admitted at a given instant.
package lifecycle

import (
	"fmt"
	"time"

	"gatepass/internal/models"
)

// Policy carries the validity constants.
type Policy struct {
	// RedemptionWindow is measured from the completion instant.
	RedemptionWindow time.Duration
	// CutoffHour is the UTC hour of the day after completion at which a ticket expires.
	CutoffHour int
}

// DefaultPolicy admits a ticket for two hours and never past 05:00 UTC the next day.
var DefaultPolicy = Policy{
	RedemptionWindow: 2 * time.Hour,
	CutoffHour:       5,
}

const redeemedAtLayout = "2006-01-02 15:04:05"

// ExpiresAt returns the calendar-day cutoff for a ticket completed at completedAt.
func (p Policy) ExpiresAt(completedAt time.Time) time.Time {
	next := completedAt.UTC().AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), p.CutoffHour, 0, 0, 0, time.UTC)
}

// Evaluate applies the admission rules in order and stops at the first failure.
// It never mutates t.
func (p Policy) Evaluate(t *models.Ticket, now time.Time) models.Verdict {
	if t.Status != models.StatusCompleted || t.Issue == nil {
		return models.Verdict{
			Code:   models.ReasonNotCompleted,
			Reason: "Ticket status is not 'completed'. Payment might be pending or failed.",
		}
	}

	if t.Redemption != nil {
		return models.Verdict{
			Code: models.ReasonAlreadyRedeemed,
			Reason: fmt.Sprintf("Ticket has already been redeemed at %s UTC.",
				t.Redemption.RedeemedAt.UTC().Format(redeemedAtLayout)),
		}
	}

	if now.After(t.Issue.ExpiresAt) {
		return models.Verdict{
			Code: models.ReasonExpired,
			Reason: fmt.Sprintf("Ticket has expired. Expiration was at %s UTC.",
				t.Issue.ExpiresAt.UTC().Format(redeemedAtLayout)),
		}
	}

	if now.After(t.Issue.CreatedAt.Add(p.RedemptionWindow)) {
		return models.Verdict{
			Code: models.ReasonWindowExceeded,
			Reason: fmt.Sprintf("Ticket validation window exceeded (%s after purchase).",
				formatWindow(p.RedemptionWindow)),
		}
	}

	return models.Verdict{
		Valid:  true,
		Code:   models.ReasonValid,
		Reason: "Ticket is valid.",
	}
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

// ExpiresAt uses DefaultPolicy.
func ExpiresAt(completedAt time.Time) time.Time {
	return DefaultPolicy.ExpiresAt(completedAt)
}

// Evaluate uses DefaultPolicy.
func Evaluate(t *models.Ticket, now time.Time) models.Verdict {
	return DefaultPolicy.Evaluate(t, now)
}

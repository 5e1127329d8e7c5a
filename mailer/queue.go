package mailer

import (
	"context"
	"time"
)

// QueuedMail is one pending verification delivery.
type QueuedMail struct {
	ID        int64
	To        string
	Code      string
	VerifyURL string
	CreatedAt time.Time
	SentAt    *time.Time
	Attempts  int
}

// Sent reports whether the mail has been delivered.
func (q *QueuedMail) Sent() bool {
	return q.SentAt != nil
}

// Queue stores pending mail so delivery survives restarts and runs off the
// request path. Handlers enqueue; the worker drains.
type Queue interface {
	// Enqueue stores a pending mail and assigns its ID.
	Enqueue(ctx context.Context, m *QueuedMail) error

	// NextBatch returns up to limit unsent mails with fewer than maxAttempts
	// delivery attempts, oldest first.
	NextBatch(ctx context.Context, limit, maxAttempts int) ([]*QueuedMail, error)

	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, id int64, at time.Time) error

	// MarkAttempt bumps the attempt counter after a failed delivery.
	MarkAttempt(ctx context.Context, id int64) error
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/mailer"
)

var _ mailer.Queue = (*MailQueueStore)(nil)

// MailQueueStore implements mailer.Queue over the shared database.
type MailQueueStore struct {
	sqlDB *sql.DB
}

func (s *MailQueueStore) Enqueue(ctx context.Context, m *mailer.QueuedMail) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO queued_mails (to_address, code, verify_url, created_at, sent_at, attempts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.To, m.Code, m.VerifyURL, toMillis(m.CreatedAt), nullMillis(m.SentAt), m.Attempts)
	if err != nil {
		return errors.Wrap(err, "[MailQueueStore.Enqueue] inserting mail")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "[MailQueueStore.Enqueue] reading insert id")
	}
	m.ID = id
	return nil
}

func (s *MailQueueStore) NextBatch(ctx context.Context, limit, maxAttempts int) ([]*mailer.QueuedMail, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, to_address, code, verify_url, created_at, sent_at, attempts
		 FROM queued_mails
		 WHERE sent_at IS NULL AND attempts < ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		maxAttempts, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[MailQueueStore.NextBatch] querying mails")
	}
	defer rows.Close()

	var batch []*mailer.QueuedMail
	for rows.Next() {
		var m mailer.QueuedMail
		var createdAt int64
		var sentAt sql.NullInt64
		if err := rows.Scan(&m.ID, &m.To, &m.Code, &m.VerifyURL, &createdAt, &sentAt, &m.Attempts); err != nil {
			return nil, errors.Wrap(err, "[MailQueueStore.NextBatch] scanning mail")
		}
		m.CreatedAt = fromMillis(createdAt)
		m.SentAt = millisPtr(sentAt)
		batch = append(batch, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[MailQueueStore.NextBatch] iterating mails")
	}
	return batch, nil
}

func (s *MailQueueStore) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		"UPDATE queued_mails SET sent_at = ? WHERE id = ? AND sent_at IS NULL",
		toMillis(at), id)
	if err != nil {
		return errors.Wrap(err, "[MailQueueStore.MarkSent] updating mail")
	}
	return nil
}

func (s *MailQueueStore) MarkAttempt(ctx context.Context, id int64) error {
	_, err := s.sqlDB.ExecContext(ctx,
		"UPDATE queued_mails SET attempts = attempts + 1 WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "[MailQueueStore.MarkAttempt] updating mail")
	}
	return nil
}

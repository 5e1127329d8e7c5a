package fakemailqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-ident-server/mailer"
)

var _ mailer.Queue = (*FakeMailQueue)(nil)

// FakeMailQueue is an in-memory mailer.Queue for tests.
type FakeMailQueue struct {
	mails  map[int64]*mailer.QueuedMail
	nextID int64
	lock   sync.RWMutex
}

func NewFakeMailQueue() *FakeMailQueue {
	return &FakeMailQueue{
		mails: make(map[int64]*mailer.QueuedMail),
	}
}

func (q *FakeMailQueue) Enqueue(_ context.Context, m *mailer.QueuedMail) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.nextID++
	m.ID = q.nextID

	stored := *m
	q.mails[stored.ID] = &stored
	return nil
}

func (q *FakeMailQueue) NextBatch(_ context.Context, limit, maxAttempts int) ([]*mailer.QueuedMail, error) {
	q.lock.RLock()
	defer q.lock.RUnlock()

	pending := make([]*mailer.QueuedMail, 0)
	for _, m := range q.mails {
		if m.Sent() || m.Attempts >= maxAttempts {
			continue
		}
		cp := *m
		pending = append(pending, &cp)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (q *FakeMailQueue) MarkSent(_ context.Context, id int64, at time.Time) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	if m, ok := q.mails[id]; ok && m.SentAt == nil {
		sentAt := at
		m.SentAt = &sentAt
	}
	return nil
}

func (q *FakeMailQueue) MarkAttempt(_ context.Context, id int64) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	if m, ok := q.mails[id]; ok {
		m.Attempts++
	}
	return nil
}

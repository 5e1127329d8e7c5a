// Package tasks runs the recurring maintenance jobs the request handlers
// must not block on: expiring stale authorization grants, pruning finished
// sessions and dead tokens, and delivering queued verification mail.
package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-ident-server/internal/config"
	"github.com/jrsteele09/go-ident-server/mailer"
	"github.com/jrsteele09/go-ident-server/oauth2"
	"github.com/jrsteele09/go-ident-server/session"
	"github.com/jrsteele09/go-ident-server/token"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	housekeepingInterval = 5 * time.Minute
	mailInterval         = 15 * time.Second
	mailBatchSize        = 25
	mailMaxAttempts      = 5
)

// Sender delivers one verification mail. Satisfied by mailer.Mailer.
type Sender interface {
	SendEmailVerification(ctx context.Context, to, code, verifyURL string) error
}

// Repos bundles the storage the jobs sweep. The monitor opens its own units
// of work; it never borrows a live request transaction.
type Repos struct {
	Grants   oauth2.GrantRepo
	Sessions session.Store
	Tokens   token.Repo
	Mail     mailer.Queue
}

type Monitor struct {
	repos  Repos
	sender Sender
	cfg    config.Config
}

func Init(repos Repos, sender Sender, cfg config.Config) *Monitor {
	return &Monitor{repos: repos, sender: sender, cfg: cfg}
}

// Run drives the jobs until ctx is cancelled. Mail drains on a short ticker,
// housekeeping sweeps on a long one with an immediate first pass.
func (m *Monitor) Run(ctx context.Context) {
	housekeeping := time.NewTicker(housekeepingInterval)
	defer housekeeping.Stop()
	mail := time.NewTicker(mailInterval)
	defer mail.Stop()

	m.Housekeeping(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-housekeeping.C:
			m.Housekeeping(ctx)
		case <-mail.C:
			m.DrainMail(ctx)
		}
	}
}

// Housekeeping runs one sweep of the expiry jobs.
func (m *Monitor) Housekeeping(ctx context.Context) {
	now := NowTimeFunc()
	m.expireGrants(ctx, now)
	m.pruneSessions(ctx, now)
	m.pruneTokens(ctx, now)
}

// expireGrants drops authorization grants that were never fulfilled within
// the code timeout. Fulfilled grants are kept for token issuance records.
func (m *Monitor) expireGrants(ctx context.Context, now time.Time) {
	dropped, err := m.repos.Grants.DeleteExpiredBefore(ctx, now.Add(-m.cfg.GetAuthCodeTimeout()))
	if err != nil {
		log.Err(err).Msg("expiring authorization grants")
		return
	}
	if dropped > 0 {
		log.Info().Int64("count", dropped).Msg("expired authorization grants")
	}
}

// pruneSessions removes sessions that finished longer ago than the
// retention window. Active sessions are never touched.
func (m *Monitor) pruneSessions(ctx context.Context, now time.Time) {
	repo, err := m.repos.Sessions.Begin(ctx)
	if err != nil {
		log.Err(err).Msg("opening session repository")
		return
	}
	defer func() { _ = repo.Cancel(ctx) }()

	dropped, err := repo.DeleteFinishedBefore(ctx, now.Add(-m.cfg.GetFinishedSessionRetention()))
	if err != nil {
		log.Err(err).Msg("pruning finished sessions")
		return
	}
	if err := repo.Commit(ctx); err != nil {
		log.Err(err).Msg("committing session prune")
		return
	}
	if dropped > 0 {
		log.Info().Int64("count", dropped).Msg("pruned finished sessions")
	}
}

func (m *Monitor) pruneTokens(ctx context.Context, now time.Time) {
	dropped, err := m.repos.Tokens.DeleteExpiredBefore(ctx, now)
	if err != nil {
		log.Err(err).Msg("pruning expired tokens")
		return
	}
	if dropped > 0 {
		log.Info().Int64("count", dropped).Msg("pruned expired tokens")
	}
}

// DrainMail sends one batch of queued verification mail. Failed deliveries
// bump the attempt counter and stay queued for the next pass.
func (m *Monitor) DrainMail(ctx context.Context) {
	batch, err := m.repos.Mail.NextBatch(ctx, mailBatchSize, mailMaxAttempts)
	if err != nil {
		log.Err(err).Msg("reading mail queue")
		return
	}
	for _, queued := range batch {
		if err := m.sender.SendEmailVerification(ctx, queued.To, queued.Code, queued.VerifyURL); err != nil {
			log.Err(err).Int64("mail_id", queued.ID).Msg("sending verification mail")
			if err := m.repos.Mail.MarkAttempt(ctx, queued.ID); err != nil {
				log.Err(err).Int64("mail_id", queued.ID).Msg("recording delivery attempt")
			}
			continue
		}
		if err := m.repos.Mail.MarkSent(ctx, queued.ID, NowTimeFunc()); err != nil {
			log.Err(err).Int64("mail_id", queued.ID).Msg("recording delivery")
		}
	}
}

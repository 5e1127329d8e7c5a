package sqlite

import (
	"context"
	"database/sql"
	"net/netip"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/session"
)

var _ session.Store = (*SessionStore)(nil)

// SessionStore implements session.Store; each Begin opens one database
// transaction, so Commit and Cancel carry the usual atomicity guarantees.
type SessionStore struct {
	sqlDB *sql.DB
}

func (s *SessionStore) Begin(ctx context.Context) (session.Repo, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionStore.Begin] starting transaction")
	}
	return &sessionTx{tx: tx}, nil
}

// sessionTx is one unit of work over sessions and authentication events.
type sessionTx struct {
	tx *sql.Tx
}

const sessionColumns = `s.id, s.created_at, s.finished_at, s.user_agent, s.last_active_ip, s.last_active_at,
	u.id, u.username, u.email, u.email_verified, u.password_hash, u.blocked, u.created_at`

func scanSession(row rowScanner) (*session.BrowserSession, error) {
	var bs session.BrowserSession
	var createdAt int64
	var finishedAt, lastActiveAt sql.NullInt64
	var lastActiveIP string
	var userEmailVerified, userBlocked, userCreatedAt int64

	if err := row.Scan(
		&bs.ID, &createdAt, &finishedAt, &bs.UserAgent, &lastActiveIP, &lastActiveAt,
		&bs.User.ID, &bs.User.Username, &bs.User.Email, &userEmailVerified,
		&bs.User.PasswordHash, &userBlocked, &userCreatedAt,
	); err != nil {
		return nil, err
	}

	bs.CreatedAt = fromMillis(createdAt)
	bs.FinishedAt = millisPtr(finishedAt)
	bs.LastActiveIP = ipFromString(lastActiveIP)
	bs.LastActiveAt = millisPtr(lastActiveAt)
	bs.User.EmailVerified = userEmailVerified != 0
	bs.User.Blocked = userBlocked != 0
	bs.User.CreatedAt = fromMillis(userCreatedAt)
	return &bs, nil
}

func (t *sessionTx) Get(ctx context.Context, id int64) (*session.BrowserSession, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM browser_sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.id = ?`, id)
	bs, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, errors.Wrap(err, "[sessionTx.Get] querying session")
	}
	return bs, nil
}

func (t *sessionTx) ListForUser(ctx context.Context, userID int64) ([]*session.BrowserSession, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM browser_sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.user_id = ? ORDER BY s.id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[sessionTx.ListForUser] querying sessions")
	}
	defer func() { _ = rows.Close() }()

	list := make([]*session.BrowserSession, 0)
	for rows.Next() {
		bs, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[sessionTx.ListForUser] scanning session")
		}
		list = append(list, bs)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[sessionTx.ListForUser] iterating sessions")
	}
	return list, nil
}

func (t *sessionTx) Create(ctx context.Context, bs *session.BrowserSession) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO browser_sessions (user_id, created_at, finished_at, user_agent, last_active_ip, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bs.User.ID, toMillis(bs.CreatedAt), nullMillis(bs.FinishedAt), bs.UserAgent,
		ipToString(bs.LastActiveIP), nullMillis(bs.LastActiveAt),
	)
	if err != nil {
		return errors.Wrap(err, "[sessionTx.Create] inserting session")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "[sessionTx.Create] reading session id")
	}
	bs.ID = id
	return nil
}

func (t *sessionTx) RecordAuthentication(ctx context.Context, sessionID int64, at time.Time) (*session.Authentication, error) {
	if err := t.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO session_authentications (session_id, created_at) VALUES (?, ?)",
		sessionID, toMillis(at))
	if err != nil {
		return nil, errors.Wrap(err, "[sessionTx.RecordAuthentication] inserting authentication")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "[sessionTx.RecordAuthentication] reading authentication id")
	}
	return &session.Authentication{ID: id, SessionID: sessionID, CreatedAt: at}, nil
}

func (t *sessionTx) LastAuthentication(ctx context.Context, sessionID int64) (*session.Authentication, error) {
	if err := t.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	row := t.tx.QueryRowContext(ctx,
		`SELECT id, session_id, created_at FROM session_authentications
		 WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sessionID)

	var auth session.Authentication
	var createdAt int64
	if err := row.Scan(&auth.ID, &auth.SessionID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[sessionTx.LastAuthentication] querying authentication")
	}
	auth.CreatedAt = fromMillis(createdAt)
	return &auth, nil
}

func (t *sessionTx) Finish(ctx context.Context, sessionID int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE browser_sessions SET finished_at = ? WHERE id = ? AND finished_at IS NULL",
		toMillis(at), sessionID)
	if err != nil {
		return errors.Wrap(err, "[sessionTx.Finish] updating session")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[sessionTx.Finish] reading affected rows")
	}
	if affected == 0 {
		// Already finished keeps its original timestamp; missing is an error.
		return t.sessionExists(ctx, sessionID)
	}
	return nil
}

func (t *sessionTx) Touch(ctx context.Context, sessionID int64, ip netip.Addr, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE browser_sessions SET last_active_ip = ?, last_active_at = ? WHERE id = ?",
		ipToString(ip), toMillis(at), sessionID)
	if err != nil {
		return errors.Wrap(err, "[sessionTx.Touch] updating session")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[sessionTx.Touch] reading affected rows")
	}
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (t *sessionTx) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM browser_sessions WHERE finished_at IS NOT NULL AND finished_at < ?",
		toMillis(cutoff))
	if err != nil {
		return 0, errors.Wrap(err, "[sessionTx.DeleteFinishedBefore] deleting sessions")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[sessionTx.DeleteFinishedBefore] reading affected rows")
	}
	return deleted, nil
}

func (t *sessionTx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return session.ErrDone
		}
		return errors.Wrap(err, "[sessionTx.Commit] committing transaction")
	}
	return nil
}

func (t *sessionTx) Cancel(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "[sessionTx.Cancel] rolling back transaction")
	}
	return nil
}

func (t *sessionTx) sessionExists(ctx context.Context, sessionID int64) error {
	var found int
	err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM browser_sessions WHERE id = ?", sessionID).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.ErrNotFound
		}
		return errors.Wrap(err, "[sessionTx.sessionExists] querying session")
	}
	return nil
}

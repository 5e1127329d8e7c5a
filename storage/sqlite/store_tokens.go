package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/token"
)

var _ token.Repo = (*TokenStore)(nil)

// TokenStore implements token.Repo over the shared database.
type TokenStore struct {
	sqlDB *sql.DB
}

const tokenColumns = "token, kind, user_id, client_id, session_id, grant_id, scope, issued_at, expires_at, revoked_at"

func (s *TokenStore) Upsert(ctx context.Context, t *token.StoredToken) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET
		   kind = excluded.kind,
		   user_id = excluded.user_id,
		   client_id = excluded.client_id,
		   session_id = excluded.session_id,
		   grant_id = excluded.grant_id,
		   scope = excluded.scope,
		   issued_at = excluded.issued_at,
		   expires_at = excluded.expires_at,
		   revoked_at = excluded.revoked_at`,
		t.Token, string(t.Kind), t.UserID, t.ClientID, t.SessionID, t.GrantID, t.Scope,
		toMillis(t.IssuedAt), toMillis(t.ExpiresAt), nullMillis(t.RevokedAt),
	)
	if err != nil {
		return errors.Wrap(err, "[TokenStore.Upsert] upserting token")
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, tokenStr string) (*token.StoredToken, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM tokens WHERE token = ?", tokenStr)

	var t token.StoredToken
	var kind string
	var issuedAt, expiresAt int64
	var revokedAt sql.NullInt64
	if err := row.Scan(&t.Token, &kind, &t.UserID, &t.ClientID, &t.SessionID, &t.GrantID,
		&t.Scope, &issuedAt, &expiresAt, &revokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, token.ErrTokenNotFound
		}
		return nil, errors.Wrap(err, "[TokenStore.Get] querying token")
	}
	t.Kind = token.Kind(kind)
	t.IssuedAt = fromMillis(issuedAt)
	t.ExpiresAt = fromMillis(expiresAt)
	t.RevokedAt = millisPtr(revokedAt)
	return &t, nil
}

func (s *TokenStore) Revoke(ctx context.Context, tokenStr string, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx,
		"UPDATE tokens SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL",
		toMillis(at), tokenStr)
	if err != nil {
		return errors.Wrap(err, "[TokenStore.Revoke] updating token")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[TokenStore.Revoke] reading affected rows")
	}
	if affected == 0 {
		// Re-revocation keeps the first timestamp; missing is an error.
		if _, err := s.Get(ctx, tokenStr); err != nil {
			return err
		}
	}
	return nil
}

func (s *TokenStore) RevokeForSession(ctx context.Context, sessionID int64, at time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		"UPDATE tokens SET revoked_at = ? WHERE session_id = ? AND revoked_at IS NULL",
		toMillis(at), sessionID)
	if err != nil {
		return errors.Wrap(err, "[TokenStore.RevokeForSession] updating tokens")
	}
	return nil
}

func (s *TokenStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM tokens WHERE expires_at < ?", toMillis(cutoff))
	if err != nil {
		return 0, errors.Wrap(err, "[TokenStore.DeleteExpiredBefore] deleting tokens")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[TokenStore.DeleteExpiredBefore] reading affected rows")
	}
	return deleted, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/oauth2"
)

var _ oauth2.GrantRepo = (*GrantStore)(nil)

// GrantStore implements oauth2.GrantRepo over the shared database.
type GrantStore struct {
	sqlDB *sql.DB
}

const grantColumns = `id, client_id, redirect_uri, scope, state, nonce, response_mode,
	code_challenge, code_challenge_method, code, session_id, user_id, created_at,
	fulfilled_at, exchanged_at`

func scanGrant(row rowScanner) (*oauth2.AuthorizationGrant, error) {
	var g oauth2.AuthorizationGrant
	var responseMode string
	var createdAt int64
	var fulfilledAt, exchangedAt sql.NullInt64
	if err := row.Scan(
		&g.ID, &g.ClientID, &g.RedirectURI, &g.Scope, &g.State, &g.Nonce, &responseMode,
		&g.CodeChallenge, &g.CodeChallengeMethod, &g.Code, &g.SessionID, &g.UserID,
		&createdAt, &fulfilledAt, &exchangedAt,
	); err != nil {
		return nil, err
	}
	g.ResponseMode = oauth2.ResponseModeType(responseMode)
	g.CreatedAt = fromMillis(createdAt)
	g.FulfilledAt = millisPtr(fulfilledAt)
	g.ExchangedAt = millisPtr(exchangedAt)
	return &g, nil
}

func (s *GrantStore) Create(ctx context.Context, grant *oauth2.AuthorizationGrant) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO authorization_grants (client_id, redirect_uri, scope, state, nonce,
		   response_mode, code_challenge, code_challenge_method, code, session_id, user_id,
		   created_at, fulfilled_at, exchanged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		grant.ClientID, grant.RedirectURI, grant.Scope, grant.State, grant.Nonce,
		string(grant.ResponseMode), grant.CodeChallenge, grant.CodeChallengeMethod,
		grant.Code, grant.SessionID, grant.UserID, toMillis(grant.CreatedAt),
		nullMillis(grant.FulfilledAt), nullMillis(grant.ExchangedAt),
	)
	if err != nil {
		return errors.Wrap(err, "[GrantStore.Create] inserting grant")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "[GrantStore.Create] reading grant id")
	}
	grant.ID = id
	return nil
}

func (s *GrantStore) GetByID(ctx context.Context, id int64) (*oauth2.AuthorizationGrant, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+grantColumns+" FROM authorization_grants WHERE id = ?", id)
	g, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauth2.ErrGrantNotFound
		}
		return nil, errors.Wrap(err, "[GrantStore.GetByID] querying grant")
	}
	return g, nil
}

func (s *GrantStore) GetByCode(ctx context.Context, code string) (*oauth2.AuthorizationGrant, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+grantColumns+" FROM authorization_grants WHERE code = ?", code)
	g, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauth2.ErrGrantNotFound
		}
		return nil, errors.Wrap(err, "[GrantStore.GetByCode] querying grant")
	}
	return g, nil
}

func (s *GrantStore) Fulfill(ctx context.Context, id int64, sessionID, userID int64, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE authorization_grants SET session_id = ?, user_id = ?, fulfilled_at = ?
		 WHERE id = ? AND fulfilled_at IS NULL`,
		sessionID, userID, toMillis(at), id)
	if err != nil {
		return errors.Wrap(err, "[GrantStore.Fulfill] updating grant")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[GrantStore.Fulfill] reading affected rows")
	}
	if affected == 0 {
		grant, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if grant.Fulfilled() {
			return oauth2.ErrGrantFulfilled
		}
	}
	return nil
}

func (s *GrantStore) Exchange(ctx context.Context, code string, at time.Time) (*oauth2.AuthorizationGrant, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE authorization_grants SET exchanged_at = ?
		 WHERE code = ? AND fulfilled_at IS NOT NULL AND exchanged_at IS NULL`,
		toMillis(at), code)
	if err != nil {
		return nil, errors.Wrap(err, "[GrantStore.Exchange] updating grant")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "[GrantStore.Exchange] reading affected rows")
	}
	if affected == 0 {
		grant, err := s.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if !grant.Fulfilled() {
			return nil, oauth2.ErrGrantNotFulfilled
		}
		return nil, oauth2.ErrCodeExchanged
	}
	return s.GetByCode(ctx, code)
}

func (s *GrantStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM authorization_grants WHERE fulfilled_at IS NULL AND created_at < ?",
		toMillis(cutoff))
	if err != nil {
		return 0, errors.Wrap(err, "[GrantStore.DeleteExpiredBefore] deleting grants")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[GrantStore.DeleteExpiredBefore] reading affected rows")
	}
	return deleted, nil
}

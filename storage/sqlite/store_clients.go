package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/clients"
)

var _ clients.Repo = (*ClientStore)(nil)

// ClientStore implements clients.Repo over the shared database. Redirect URI
// and scope lists are stored as JSON arrays.
type ClientStore struct {
	sqlDB *sql.DB
}

const clientColumns = "id, client_type, name, secret, redirect_uris, scopes, logo_uri, tos_uri, policy_uri, created_at"

func (s *ClientStore) Upsert(ctx context.Context, client *clients.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}

	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return errors.Wrap(err, "[ClientStore.Upsert] encoding redirect uris")
	}
	scopes, err := json.Marshal(client.Scopes)
	if err != nil {
		return errors.Wrap(err, "[ClientStore.Upsert] encoding scopes")
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO oauth_clients (`+clientColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   client_type = excluded.client_type,
		   name = excluded.name,
		   secret = excluded.secret,
		   redirect_uris = excluded.redirect_uris,
		   scopes = excluded.scopes,
		   logo_uri = excluded.logo_uri,
		   tos_uri = excluded.tos_uri,
		   policy_uri = excluded.policy_uri`,
		client.ID, string(client.Type), client.Name, client.Secret,
		string(redirectURIs), string(scopes),
		client.LogoURI, client.TOSURI, client.PolicyURI, toMillis(client.CreatedAt),
	)
	if err != nil {
		return errors.Wrap(err, "[ClientStore.Upsert] upserting client")
	}
	return nil
}

func scanClient(row rowScanner) (*clients.Client, error) {
	var c clients.Client
	var clientType string
	var redirectURIs, scopes string
	var createdAt int64
	if err := row.Scan(&c.ID, &clientType, &c.Name, &c.Secret, &redirectURIs, &scopes,
		&c.LogoURI, &c.TOSURI, &c.PolicyURI, &createdAt); err != nil {
		return nil, err
	}
	c.Type = clients.ClientType(clientType)
	c.CreatedAt = fromMillis(createdAt)
	if err := json.Unmarshal([]byte(redirectURIs), &c.RedirectURIs); err != nil {
		return nil, errors.Wrap(err, "decoding redirect uris")
	}
	if err := json.Unmarshal([]byte(scopes), &c.Scopes); err != nil {
		return nil, errors.Wrap(err, "decoding scopes")
	}
	return &c, nil
}

func (s *ClientStore) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM oauth_clients WHERE id = ?", clientID)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clients.ErrNotFound
		}
		return nil, errors.Wrap(err, "[ClientStore.Get] querying client")
	}
	return c, nil
}

func (s *ClientStore) List(ctx context.Context, offset, limit int) ([]*clients.Client, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM oauth_clients ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[ClientStore.List] querying clients")
	}
	defer func() { _ = rows.Close() }()

	list := make([]*clients.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[ClientStore.List] scanning client")
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[ClientStore.List] iterating clients")
	}
	return list, nil
}

func (s *ClientStore) Delete(ctx context.Context, clientID string) error {
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM oauth_clients WHERE id = ?", clientID)
	if err != nil {
		return errors.Wrap(err, "[ClientStore.Delete] deleting client")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[ClientStore.Delete] reading affected rows")
	}
	if affected == 0 {
		return clients.ErrNotFound
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/users"
)

var (
	_ users.Repo      = (*UserStore)(nil)
	_ users.EmailRepo = (*EmailStore)(nil)
)

// UserStore implements users.Repo over the shared database.
type UserStore struct {
	sqlDB *sql.DB
}

const userColumns = "id, username, email, email_verified, password_hash, blocked, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*users.User, error) {
	var u users.User
	var emailVerified, blocked, createdAt int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &emailVerified, &u.PasswordHash, &blocked, &createdAt); err != nil {
		return nil, err
	}
	u.EmailVerified = emailVerified != 0
	u.Blocked = blocked != 0
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, user *users.User) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (username, email, email_verified, password_hash, blocked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, boolToInt(user.EmailVerified), user.PasswordHash,
		boolToInt(user.Blocked), toMillis(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "users.username") {
			return users.ErrUsernameTaken
		}
		if isUniqueViolation(err, "users.email") {
			return users.ErrEmailTaken
		}
		return errors.Wrap(err, "[UserStore.Create] inserting user")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "[UserStore.Create] reading user id")
	}
	user.ID = id
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*users.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrap(err, "[UserStore.GetByID] querying user")
	}
	return u, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrap(err, "[UserStore.GetByUsername] querying user")
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrap(err, "[UserStore.GetByEmail] querying user")
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[UserStore.List] querying users")
	}
	defer func() { _ = rows.Close() }()

	list := make([]*users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[UserStore.List] scanning user")
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[UserStore.List] iterating users")
	}
	return list, nil
}

func (s *UserStore) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateColumn(ctx, "[UserStore.SetPassword]", "password_hash", id, passwordHash)
}

func (s *UserStore) SetEmailVerified(ctx context.Context, id int64, verified bool) error {
	return s.updateColumn(ctx, "[UserStore.SetEmailVerified]", "email_verified", id, boolToInt(verified))
}

func (s *UserStore) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return s.updateColumn(ctx, "[UserStore.SetBlocked]", "blocked", id, boolToInt(blocked))
}

func (s *UserStore) updateColumn(ctx context.Context, caller, column string, id int64, value any) error {
	res, err := s.sqlDB.ExecContext(ctx, "UPDATE users SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return errors.Wrap(err, caller+" updating user")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, caller+" reading affected rows")
	}
	if affected == 0 {
		return users.ErrNotFound
	}
	return nil
}

// EmailStore implements users.EmailRepo over the shared database.
type EmailStore struct {
	sqlDB *sql.DB
}

func (s *EmailStore) Add(ctx context.Context, email *users.Email) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO user_emails (user_id, address, created_at, confirmed_at) VALUES (?, ?, ?, ?)`,
		email.UserID, email.Address, toMillis(email.CreatedAt), nullMillis(email.ConfirmedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "user_emails.user_id") {
			return users.ErrEmailTaken
		}
		return errors.Wrap(err, "[EmailStore.Add] inserting email")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "[EmailStore.Add] reading email id")
	}
	email.ID = id
	return nil
}

func scanEmail(row rowScanner) (*users.Email, error) {
	var e users.Email
	var createdAt int64
	var confirmedAt sql.NullInt64
	if err := row.Scan(&e.ID, &e.UserID, &e.Address, &createdAt, &confirmedAt); err != nil {
		return nil, err
	}
	e.CreatedAt = fromMillis(createdAt)
	e.ConfirmedAt = millisPtr(confirmedAt)
	return &e, nil
}

func (s *EmailStore) GetByID(ctx context.Context, id int64) (*users.Email, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, user_id, address, created_at, confirmed_at FROM user_emails WHERE id = ?", id)
	e, err := scanEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrEmailNotFound
		}
		return nil, errors.Wrap(err, "[EmailStore.GetByID] querying email")
	}
	return e, nil
}

func (s *EmailStore) ListForUser(ctx context.Context, userID int64) ([]*users.Email, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT id, user_id, address, created_at, confirmed_at FROM user_emails WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, errors.Wrap(err, "[EmailStore.ListForUser] querying emails")
	}
	defer func() { _ = rows.Close() }()

	list := make([]*users.Email, 0)
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[EmailStore.ListForUser] scanning email")
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[EmailStore.ListForUser] iterating emails")
	}
	return list, nil
}

func (s *EmailStore) Confirm(ctx context.Context, id int64, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx,
		"UPDATE user_emails SET confirmed_at = ? WHERE id = ? AND confirmed_at IS NULL",
		toMillis(at), id)
	if err != nil {
		return errors.Wrap(err, "[EmailStore.Confirm] updating email")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[EmailStore.Confirm] reading affected rows")
	}
	if affected == 0 {
		// Either already confirmed (keep the first timestamp) or missing.
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *EmailStore) Delete(ctx context.Context, id int64) error {
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM user_emails WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "[EmailStore.Delete] deleting email")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[EmailStore.Delete] reading affected rows")
	}
	if affected == 0 {
		return users.ErrEmailNotFound
	}
	return nil
}

func (s *EmailStore) CreateVerification(ctx context.Context, v *users.Verification) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO email_verifications (code, email_id, created_at, expires_at, used_at)
		 VALUES (?, ?, ?, ?, ?)`,
		v.Code, v.EmailID, toMillis(v.CreatedAt), toMillis(v.ExpiresAt), nullMillis(v.UsedAt),
	)
	if err != nil {
		return errors.Wrap(err, "[EmailStore.CreateVerification] inserting verification")
	}
	return nil
}

func (s *EmailStore) GetVerification(ctx context.Context, code string) (*users.Verification, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT code, email_id, created_at, expires_at, used_at FROM email_verifications WHERE code = ?", code)

	var v users.Verification
	var createdAt, expiresAt int64
	var usedAt sql.NullInt64
	if err := row.Scan(&v.Code, &v.EmailID, &createdAt, &expiresAt, &usedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrVerificationNotFound
		}
		return nil, errors.Wrap(err, "[EmailStore.GetVerification] querying verification")
	}
	v.CreatedAt = fromMillis(createdAt)
	v.ExpiresAt = fromMillis(expiresAt)
	v.UsedAt = millisPtr(usedAt)
	return &v, nil
}

func (s *EmailStore) UseVerification(ctx context.Context, code string, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx,
		"UPDATE email_verifications SET used_at = ? WHERE code = ? AND used_at IS NULL",
		toMillis(at), code)
	if err != nil {
		return errors.Wrap(err, "[EmailStore.UseVerification] updating verification")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[EmailStore.UseVerification] reading affected rows")
	}
	if affected == 0 {
		// Keep the first use timestamp; only a missing code is an error.
		if _, err := s.GetVerification(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

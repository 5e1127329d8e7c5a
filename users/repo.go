package users

import (
	"context"
	"time"
)

// Repo is the persistence boundary for user accounts. Create assigns the ID.
type Repo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	SetEmailVerified(ctx context.Context, id int64, verified bool) error
	SetBlocked(ctx context.Context, id int64, blocked bool) error
}

// EmailRepo is the persistence boundary for addresses and their verification
// codes. Add assigns the email ID.
type EmailRepo interface {
	Add(ctx context.Context, email *Email) error
	GetByID(ctx context.Context, id int64) (*Email, error)
	ListForUser(ctx context.Context, userID int64) ([]*Email, error)
	Confirm(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error

	CreateVerification(ctx context.Context, v *Verification) error
	GetVerification(ctx context.Context, code string) (*Verification, error)
	UseVerification(ctx context.Context, code string, at time.Time) error
}

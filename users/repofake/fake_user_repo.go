package fakeuserrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-ident-server/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory users.Repo for tests and local development.
type FakeUserRepo struct {
	users     map[int64]*users.User
	usernames map[string]int64
	emails    map[string]int64
	nextID    int64
	lock      sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:     make(map[int64]*users.User),
		usernames: make(map[string]int64),
		emails:    make(map[string]int64),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.usernames[user.Username]; ok {
		return users.ErrUsernameTaken
	}
	if user.Email != "" {
		if _, ok := ur.emails[user.Email]; ok {
			return users.ErrEmailTaken
		}
	}

	ur.nextID++
	user.ID = ur.nextID

	copied := *user
	ur.users[user.ID] = &copied
	ur.usernames[user.Username] = user.ID
	if user.Email != "" {
		ur.emails[user.Email] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id int64) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernames[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *ur.users[id]
	return &copied, nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emails[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *ur.users[id]
	return &copied, nil
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	all := make([]*users.User, 0, len(ur.users))
	for _, u := range ur.users {
		copied := *u
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (ur *FakeUserRepo) SetPassword(_ context.Context, id int64, passwordHash string) error {
	return ur.update(id, func(u *users.User) { u.PasswordHash = passwordHash })
}

func (ur *FakeUserRepo) SetEmailVerified(_ context.Context, id int64, verified bool) error {
	return ur.update(id, func(u *users.User) { u.EmailVerified = verified })
}

func (ur *FakeUserRepo) SetBlocked(_ context.Context, id int64, blocked bool) error {
	return ur.update(id, func(u *users.User) { u.Blocked = blocked })
}

func (ur *FakeUserRepo) update(id int64, fn func(*users.User)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	fn(user)
	return nil
}

var _ users.EmailRepo = (*FakeEmailRepo)(nil)

// FakeEmailRepo is an in-memory users.EmailRepo for tests and local
// development.
type FakeEmailRepo struct {
	emails        map[int64]*users.Email
	verifications map[string]*users.Verification
	nextID        int64
	lock          sync.RWMutex
}

func NewFakeEmailRepo() *FakeEmailRepo {
	return &FakeEmailRepo{
		emails:        make(map[int64]*users.Email),
		verifications: make(map[string]*users.Verification),
	}
}

func (er *FakeEmailRepo) Add(_ context.Context, email *users.Email) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	for _, e := range er.emails {
		if e.UserID == email.UserID && e.Address == email.Address {
			return users.ErrEmailTaken
		}
	}

	er.nextID++
	email.ID = er.nextID

	copied := *email
	er.emails[email.ID] = &copied
	return nil
}

func (er *FakeEmailRepo) GetByID(_ context.Context, id int64) (*users.Email, error) {
	er.lock.RLock()
	defer er.lock.RUnlock()

	email, ok := er.emails[id]
	if !ok {
		return nil, users.ErrEmailNotFound
	}
	copied := *email
	return &copied, nil
}

func (er *FakeEmailRepo) ListForUser(_ context.Context, userID int64) ([]*users.Email, error) {
	er.lock.RLock()
	defer er.lock.RUnlock()

	list := make([]*users.Email, 0)
	for _, e := range er.emails {
		if e.UserID != userID {
			continue
		}
		copied := *e
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (er *FakeEmailRepo) Confirm(_ context.Context, id int64, at time.Time) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	email, ok := er.emails[id]
	if !ok {
		return users.ErrEmailNotFound
	}
	if email.ConfirmedAt == nil {
		email.ConfirmedAt = &at
	}
	return nil
}

func (er *FakeEmailRepo) Delete(_ context.Context, id int64) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	if _, ok := er.emails[id]; !ok {
		return users.ErrEmailNotFound
	}
	delete(er.emails, id)
	return nil
}

func (er *FakeEmailRepo) CreateVerification(_ context.Context, v *users.Verification) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	copied := *v
	er.verifications[v.Code] = &copied
	return nil
}

func (er *FakeEmailRepo) GetVerification(_ context.Context, code string) (*users.Verification, error) {
	er.lock.RLock()
	defer er.lock.RUnlock()

	v, ok := er.verifications[code]
	if !ok {
		return nil, users.ErrVerificationNotFound
	}
	copied := *v
	return &copied, nil
}

func (er *FakeEmailRepo) UseVerification(_ context.Context, code string, at time.Time) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	v, ok := er.verifications[code]
	if !ok {
		return users.ErrVerificationNotFound
	}
	if v.UsedAt == nil {
		v.UsedAt = &at
	}
	return nil
}

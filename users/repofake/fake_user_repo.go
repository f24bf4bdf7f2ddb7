package fakeuserrepo

import (
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[string]users.User
	lock  sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users: make(map[string]users.User),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	if err := users.ValidateName(user.Name); err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "%s", err.Error())
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if existing, ok := ur.users[user.Name]; ok && user.CreatedAt.IsZero() {
		user.CreatedAt = existing.CreatedAt
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	ur.users[user.Name] = *user
	return nil
}

func (ur *FakeUserRepo) Delete(name string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[name]; !ok {
		return errors.Wrapf(errors.ErrUserNotFound, "delete %s", name)
	}
	delete(ur.users, name)
	return nil
}

func (ur *FakeUserRepo) Get(name string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUserNotFound, "get %s", name)
	}
	return &user, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	names := make([]string, 0, len(ur.users))
	for name := range ur.users {
		names = append(names, name)
	}
	sort.Strings(names)

	if offset >= len(names) {
		return []*users.User{}, nil
	}
	end := len(names)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]*users.User, 0, end-offset)
	for _, name := range names[offset:end] {
		u := ur.users[name]
		result = append(result, &u)
	}
	return result, nil
}

func (ur *FakeUserRepo) SetBlocked(name string, blocked bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[name]
	if !ok {
		return errors.Wrapf(errors.ErrUserNotFound, "set blocked %s", name)
	}
	user.Blocked = blocked
	ur.users[name] = user
	return nil
}

func (ur *FakeUserRepo) Touch(name string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[name]
	if !ok {
		return errors.Wrapf(errors.ErrUserNotFound, "touch %s", name)
	}
	user.LastActivity = at
	ur.users[name] = user
	return nil
}

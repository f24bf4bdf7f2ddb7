// Package authenticator checks hub logins, either against locally stored
// password hashes or against an upstream OpenID Connect provider.
package authenticator

import (
	"context"
	"strings"
	"sync"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/users"
)

// Password authenticates hub users by the bcrypt hash in the user repo.
type Password struct {
	users users.UserRepo
}

func NewPassword(userRepo users.UserRepo) *Password {
	return &Password{users: userRepo}
}

// Authenticate returns the user when password matches. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (p *Password) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.ErrInvalidCredentials
	}

	user, err := p.users.Get(username)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			// Spend the same time as a real comparison
			users.CheckPasswordHash(password, dummyHash())
			return nil, errors.ErrInvalidCredentials
		}
		return nil, errors.Wrapf(err, "[Password.Authenticate] users.Get")
	}
	if !user.CheckPassword(password) {
		return nil, errors.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, errors.ErrUserBlocked
	}
	return user, nil
}

var dummyHash = sync.OnceValue(func() string {
	hash, _ := users.HashPassword("not-a-real-password")
	return hash
})

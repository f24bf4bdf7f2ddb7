package server

import (
	"fmt"

	"github.com/jrsteele09/go-spawn-hub/internal/config"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/users"
	"github.com/rs/zerolog/log"
)

// InitialiseUsers creates the users named in the config file and registers
// the OAuth client of each user's server. Existing users keep their password;
// their admin flag follows the file.
// Users created without a password get a generated one, logged once.
func (s *Server) InitialiseUsers(config config.Config) error {
	for _, spec := range config.GetUsers() {
		if err := users.ValidateName(spec.Name); err != nil {
			return fmt.Errorf("[Server InitialiseUsers] %q: %w", spec.Name, err)
		}

		existing, err := s.repos.Users.Get(spec.Name)
		switch {
		case err == nil:
			if existing.Admin != spec.Admin {
				existing.Admin = spec.Admin
				if err := s.repos.Users.Upsert(existing); err != nil {
					return fmt.Errorf("[Server InitialiseUsers] update %s: %w", spec.Name, err)
				}
			}
		case errors.Is(err, errors.ErrUserNotFound):
			if err := s.createUser(spec); err != nil {
				return err
			}
		default:
			return fmt.Errorf("[Server InitialiseUsers] get %s: %w", spec.Name, err)
		}

		if _, err := s.auth.EnsureClient(spec.Name); err != nil {
			return fmt.Errorf("[Server InitialiseUsers] client for %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (s *Server) createUser(spec config.UserSpec) error {
	password := spec.Password
	generated := password == ""
	if generated {
		var err error
		if password, err = generateRandomString(12); err != nil {
			return fmt.Errorf("[Server createUser] generate password: %w", err)
		}
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return fmt.Errorf("[Server createUser] hash password: %w", err)
	}
	user := &users.User{
		Name:         spec.Name,
		PasswordHash: hash,
		Admin:        spec.Admin,
		CreatedAt:    s.nowTime(),
	}
	if err := s.repos.Users.Upsert(user); err != nil {
		return fmt.Errorf("[Server createUser] %s: %w", spec.Name, err)
	}

	event := log.Info().Str("user", spec.Name).Bool("admin", spec.Admin)
	if generated {
		event = event.Str("password", password)
	}
	event.Msg("user created")
	return nil
}

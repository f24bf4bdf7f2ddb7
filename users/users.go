package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// User is a registered identity of the hub. Name is the stable, immutable key.
type User struct {
	Name         string    `json:"name"`                    // Unique username, used in /user/<name>/ URLs
	PasswordHash string    `json:"-"`                       // Hashed version of the user's password - never serialize
	Admin        bool      `json:"admin,omitempty"`         // Admins may manage every user and, with admin access enabled, reach their servers
	Blocked      bool      `json:"blocked,omitempty"`       // Blocked, has the user been blocked from logging in
	CreatedAt    time.Time `json:"created,omitempty"`       // Date and time when the user was added
	LastActivity time.Time `json:"last_activity,omitempty"` // Last successful login or proxied request
}

// ValidateName checks that a username is usable as a single URL path segment.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("username is required")
	}
	if len(name) > 255 {
		return fmt.Errorf("username must be at most 255 characters")
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("username must not start or end with whitespace")
	}
	for _, r := range name {
		if r == '/' || r == '?' || r == '#' || r == '%' || unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("username contains invalid character %q", r)
		}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's hash
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return CheckPasswordHash(password, u.PasswordHash)
}

// CanAccessServerOf reports whether u may reach owner's server without further
// consent: always for the owner, and for admins when adminAccess is enabled.
func (u *User) CanAccessServerOf(owner string, adminAccess bool) bool {
	if u == nil || u.Blocked {
		return false
	}
	if u.Name == owner {
		return true
	}
	return u.Admin && adminAccess
}

package users

import "time"

type UserRepo interface {
	Upsert(user *User) error
	Delete(name string) error
	Get(name string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetBlocked(name string, blocked bool) error
	Touch(name string, at time.Time) error
}

package service

import (
	"sync"

	"github.com/pkg/errors"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

var ErrUnknownUser = errors.New("user not found")

type User struct {
	ID       int64
	Username string
	Role     Role
}

// UserDirectory is the in-memory registry of who may take or author quizzes.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[int64]User
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[int64]User)}
}

// Register adds or replaces a user.
func (d *UserDirectory) Register(id int64, username string, role Role) (User, error) {
	if role != RoleStudent && role != RoleTeacher {
		return User{}, errors.Errorf("unknown role %q", role)
	}

	u := User{ID: id, Username: username, Role: role}
	d.mu.Lock()
	d.users[id] = u
	d.mu.Unlock()
	return u, nil
}

func (d *UserDirectory) Login(id int64) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, errors.Wrapf(ErrUnknownUser, "id %d", id)
	}
	return u, nil
}

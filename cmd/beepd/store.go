package main

import (
	"fmt"
	"sync"

	"github.com/WhileEndless/go-rawhttpd/pkg/cbuf"
)

// User mirrors the user_tag struct from original_source/apps/beep/beep_db.h:
// a dbid_t plus the three bounded text fields the wire limits (§6) apply to.
type User struct {
	ID    uint64
	Name  string
	Nick  string
	Email string
}

// validate enforces the field-length limits spec §6 states for the beepd
// application (name/nickname ≤ 50 bytes, email ≤ 500).
func (u User) validate() error {
	if len(u.Name) > cbuf.MaxNameLen {
		return fmt.Errorf("name exceeds %d bytes", cbuf.MaxNameLen)
	}
	if len(u.Nick) > cbuf.MaxNicknameLen {
		return fmt.Errorf("nick exceeds %d bytes", cbuf.MaxNicknameLen)
	}
	if len(u.Email) > cbuf.MaxEmailLen {
		return fmt.Errorf("email exceeds %d bytes", cbuf.MaxEmailLen)
	}
	return nil
}

// Store is an in-memory stand-in for the original's beep_db: the spec
// treats the actual persistence layer as out of scope (§1's list of
// external collaborators), so this holds just enough state to make the
// four request codes exercisable end to end.
type Store struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*User
	byName map[string]uint64
}

func NewStore() *Store {
	return &Store{users: make(map[uint64]*User), byName: make(map[string]uint64)}
}

// Add implements BEEP_USER_ADD (user_add in beep_db.h): assigns a fresh id
// and stores the user, keyed by id and by name for USER_GET lookups.
func (s *Store) Add(u User) (uint64, error) {
	if err := u.validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[u.Name]; exists {
		return 0, fmt.Errorf("user %q already exists", u.Name)
	}
	s.nextID++
	u.ID = s.nextID
	s.users[u.ID] = &u
	s.byName[u.Name] = u.ID
	return u.ID, nil
}

// Del implements BEEP_USER_DEL (user_del).
func (s *Store) Del(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("no such user id %d", id)
	}
	delete(s.users, id)
	delete(s.byName, u.Name)
	return nil
}

// Update implements BEEP_USER_UPD (user_update): replaces the nick/email
// of an existing user, identified by id.
func (s *Store) Update(u User) error {
	if err := u.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("no such user id %d", u.ID)
	}
	existing.Nick = u.Nick
	existing.Email = u.Email
	return nil
}

// Get implements BEEP_USER_GET (user_get): looks a user up by name.
func (s *Store) Get(name string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[name]
	if !ok {
		return User{}, fmt.Errorf("no such user %q", name)
	}
	return *s.users[id], nil
}

package devserver

import (
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Account is a registered user
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	JobTitle      string
	Department    string
	AllowedRoutes []string
	CreatedAt     time.Time
}

// UserInfo returns the identity payload served by the API
func (a *Account) UserInfo() *auth.UserInfo {
	return &auth.UserInfo{
		ID:            a.ID,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		JobTitle:      a.JobTitle,
		Department:    a.Department,
		AllowedRoutes: append([]string{}, a.AllowedRoutes...),
	}
}

type session struct {
	token     string
	userID    string
	expiresAt time.Time
}

// directory keeps accounts, sessions and revoked access tokens in memory
type directory struct {
	mu       sync.RWMutex
	byEmail  map[string]*Account
	byID     map[string]*Account
	sessions map[string]session
	revoked  map[string]time.Time
	cost     int
	now      func() time.Time
}

func newDirectory(cost int, now func() time.Time) *directory {
	return &directory{
		byEmail:  map[string]*Account{},
		byID:     map[string]*Account{},
		sessions: map[string]session{},
		revoked:  map[string]time.Time{},
		cost:     cost,
		now:      now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *directory) create(reg auth.Registration, routes []string) (*Account, error) {
	key := emailKey(reg.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), d.cost)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if hid, err := hashid.NewUUID(key); err == nil {
		id = hid.String()
	}

	acc := &Account{
		ID:            id,
		Email:         strings.TrimSpace(reg.Email),
		PasswordHash:  string(hash),
		FirstName:     reg.FirstName,
		LastName:      reg.LastName,
		JobTitle:      reg.JobTitle,
		Department:    reg.Department,
		AllowedRoutes: append([]string{}, routes...),
		CreatedAt:     d.now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byEmail[key]; ok {
		return nil, ErrEmailTaken
	}
	d.byEmail[key] = acc
	d.byID[acc.ID] = acc
	return acc, nil
}

func (d *directory) authenticate(email, password string) (*Account, error) {
	d.mu.RLock()
	acc, ok := d.byEmail[emailKey(email)]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

func (d *directory) account(id string) (*Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[id]
	return acc, ok
}

func (d *directory) setRoutes(id string, routes []string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[id]
	if !ok {
		return false
	}
	acc.AllowedRoutes = append([]string{}, routes...)
	return true
}

func (d *directory) openSession(userID string, ttl time.Duration) session {
	s := session{
		token:     uuid.NewString(),
		userID:    userID,
		expiresAt: d.now().Add(ttl),
	}
	d.mu.Lock()
	d.sessions[s.token] = s
	d.mu.Unlock()
	return s
}

// session returns the live session for token. Expired sessions are
// removed on lookup.
func (d *directory) session(token string) (session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[token]
	if !ok {
		return session{}, false
	}
	if !d.now().Before(s.expiresAt) {
		delete(d.sessions, token)
		return session{}, false
	}
	return s, true
}

func (d *directory) closeSession(token string) {
	d.mu.Lock()
	delete(d.sessions, token)
	d.mu.Unlock()
}

func (d *directory) closeUserSessions(userID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for token, s := range d.sessions {
		if s.userID == userID {
			delete(d.sessions, token)
			n++
		}
	}
	return n
}

func (d *directory) revoke(jti string, until time.Time) {
	if jti == "" {
		return
	}
	d.mu.Lock()
	d.revoked[jti] = until
	d.mu.Unlock()
}

func (d *directory) isRevoked(jti string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.revoked[jti]
	return ok
}

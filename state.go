package auth

import (
	"sync"
)

// AuthState is the client's view of who is logged in. Values are
// immutable snapshots; use StateStore to change the current state.
type AuthState struct {
	User          *UserInfo
	Authenticated bool
	Loading       bool
}

// InitialState is the state before a bootstrap attempt resolves
func InitialState() AuthState {
	return AuthState{Loading: true}
}

// Unauthenticated is the terminal state with no identity
func Unauthenticated() AuthState {
	return AuthState{}
}

// Authenticated is the terminal state for a confirmed identity. A nil
// user yields the unauthenticated state.
func Authenticated(user *UserInfo) AuthState {
	return normalizeState(AuthState{User: user})
}

// UserID returns the current user id, if any
func (s AuthState) UserID() (string, bool) {
	if s.User == nil {
		return "", false
	}
	return s.User.ID, true
}

func normalizeState(s AuthState) AuthState {
	s.User = s.User.Clone()
	s.Authenticated = s.User != nil
	return s
}

// StateListener receives every applied transition
type StateListener func(prev, next AuthState)

// StateStore owns the process wide AuthState. Writers are serialized and
// tagged with an epoch; a write carrying a retired epoch is discarded.
type StateStore struct {
	// writeMu serializes commits together with their persistence effects.
	writeMu sync.Mutex

	mu        sync.RWMutex
	state     AuthState
	epoch     uint64
	listeners map[int]StateListener
	nextID    int
	logger    Logger
}

// StateStoreOption customizes the store
type StateStoreOption func(*StateStore)

// WithStateLogger sets the store logger
func WithStateLogger(logger Logger) StateStoreOption {
	return func(s *StateStore) {
		s.logger = normalizeLogger(logger)
	}
}

// NewStateStore returns a store in the initial loading state
func NewStateStore(opts ...StateStoreOption) *StateStore {
	s := &StateStore{
		state:     InitialState(),
		listeners: map[int]StateListener{},
		logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *StateStore) Snapshot() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Epoch returns the current writer epoch
func (s *StateStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Current reports whether epoch is still the active one
func (s *StateStore) Current(epoch uint64) bool {
	return s.Epoch() == epoch
}

// Begin starts a bootstrap attempt: it retires every earlier epoch and
// puts the state back into loading.
func (s *StateStore) Begin() uint64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	prev := s.state
	s.state = InitialState()
	next := s.state
	s.mu.Unlock()

	s.logger.Debug("state begin epoch=%d", epoch)
	s.notify(prev, next)
	return epoch
}

// Invalidate retires the active epoch without touching the state and
// returns the new one. User initiated actions call it so that any in-flight
// bootstrap result is discarded.
func (s *StateStore) Invalidate() uint64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// Supersede retires epoch if it is still active. It returns false when a
// newer epoch already took over.
func (s *StateStore) Supersede(epoch uint64) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.epoch++
	return true
}

// Guard runs fn under the writer lock if epoch is still active. It returns
// false without calling fn when the epoch was retired.
func (s *StateStore) Guard(epoch uint64, fn func() error) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.Current(epoch) {
		return false, nil
	}
	if fn == nil {
		return true, nil
	}
	return true, fn()
}

// Commit replaces the whole state if epoch is still active. effects runs
// first, under the writer lock, so persistence and state change land
// together or not at all. Every commit ends the loading window.
func (s *StateStore) Commit(epoch uint64, next AuthState, effects func() error) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.Current(epoch) {
		s.logger.Debug("state commit discarded stale epoch=%d", epoch)
		return false, nil
	}

	var effectErr error
	if effects != nil {
		effectErr = effects()
	}

	next = normalizeState(next)
	next.Loading = false

	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	s.notify(prev, next)
	return true, effectErr
}

// Reset replaces the state unconditionally and retires the active epoch.
// Logout uses it: it must win over anything in flight.
func (s *StateStore) Reset(next AuthState, effects func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()

	var effectErr error
	if effects != nil {
		effectErr = effects()
	}

	next = normalizeState(next)
	next.Loading = false

	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	s.notify(prev, next)
	return effectErr
}

// Subscribe registers fn for every transition and returns the function
// that removes it.
func (s *StateStore) Subscribe(fn StateListener) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// notify is called with writeMu held, so listeners observe transitions in
// commit order.
func (s *StateStore) notify(prev, next AuthState) {
	s.mu.RLock()
	listeners := make([]StateListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(cloneState(prev), cloneState(next))
	}
}

func cloneState(s AuthState) AuthState {
	s.User = s.User.Clone()
	return s
}

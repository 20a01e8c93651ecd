// Package credentials persists the bearer token and the last known user
// profile across restarts.
//
// Storage failures never reach callers: they are logged and the entry is
// treated as absent, so a broken store degrades to a logged-out client
// instead of crashing it.
package credentials

import (
	"encoding/json"

	"github.com/harun/ticketdesk/internal/observability"
	"github.com/harun/ticketdesk/pkg/api"
	"github.com/harun/ticketdesk/pkg/storage"
	"github.com/rs/zerolog"
)

// Storage keys
const (
	TokenKey = "token"
	UserKey  = "user"
)

// Store reads and writes the two credential entries
type Store struct {
	storage storage.Storage
	logger  zerolog.Logger
}

// New creates a credential store on top of s
func New(s storage.Storage, logger zerolog.Logger) *Store {
	return &Store{
		storage: s,
		logger:  logger.With().Str("component", "credentials").Logger(),
	}
}

// Save writes the token and, when user is non-nil, the user
func (s *Store) Save(token string, user *api.User) {
	if err := s.storage.Set(TokenKey, token); err != nil {
		s.fail("set", TokenKey, err)
	}
	if user == nil {
		return
	}
	s.SaveUser(user)
}

// SaveUser writes the cached user profile
func (s *Store) SaveUser(user *api.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		s.fail("marshal", UserKey, err)
		return
	}
	if err := s.storage.Set(UserKey, string(raw)); err != nil {
		s.fail("set", UserKey, err)
	}
}

// Clear removes both entries
func (s *Store) Clear() {
	if err := s.storage.Remove(TokenKey); err != nil {
		s.fail("remove", TokenKey, err)
	}
	if err := s.storage.Remove(UserKey); err != nil {
		s.fail("remove", UserKey, err)
	}
}

// Load returns the stored token ("" when absent) and user (nil when absent)
func (s *Store) Load() (string, *api.User) {
	return s.Token(), s.CachedUser()
}

// Token returns the stored token or "". It satisfies api.TokenSource.
func (s *Store) Token() string {
	token, ok, err := s.storage.Get(TokenKey)
	if err != nil {
		s.fail("get", TokenKey, err)
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// CachedUser returns the stored user or nil. A corrupt entry reads as nil.
func (s *Store) CachedUser() *api.User {
	raw, ok, err := s.storage.Get(UserKey)
	if err != nil {
		s.fail("get", UserKey, err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var user api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.fail("unmarshal", UserKey, err)
		return nil
	}
	return &user
}

func (s *Store) fail(op, key string, err error) {
	observability.RecordStorageError(op)
	s.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("Credential storage failure ignored")
}

package credentials

import (
	"errors"
	"testing"

	"github.com/harun/ticketdesk/pkg/api"
	"github.com/harun/ticketdesk/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStorage fails every operation, like storage blocked by the host
type brokenStorage struct{}

func (brokenStorage) Get(string) (string, bool, error) { return "", false, errors.New("denied") }
func (brokenStorage) Set(string, string) error         { return errors.New("denied") }
func (brokenStorage) Remove(string) error              { return errors.New("denied") }
func (brokenStorage) Close() error                     { return nil }

func TestStore_SaveAndLoad(t *testing.T) {
	mem := storage.NewMemory()
	store := New(mem, zerolog.Nop())

	user := &api.User{ID: 1, Name: "Ana", Role: api.RoleSupport}
	store.Save("tok", user)

	token, loaded := store.Load()
	assert.Equal(t, "tok", token)
	require.NotNil(t, loaded)
	assert.Equal(t, "Ana", loaded.Name)
	assert.Equal(t, api.RoleSupport, loaded.Role)
}

func TestStore_SaveWithoutUserKeepsPreviousUser(t *testing.T) {
	store := New(storage.NewMemory(), zerolog.Nop())

	store.Save("first", &api.User{ID: 1})
	store.Save("second", nil)

	token, user := store.Load()
	assert.Equal(t, "second", token)
	require.NotNil(t, user)
	assert.Equal(t, int64(1), user.ID)
}

func TestStore_Clear(t *testing.T) {
	mem := storage.NewMemory()
	store := New(mem, zerolog.Nop())

	store.Save("tok", &api.User{ID: 1})
	store.Clear()
	store.Clear()

	token, user := store.Load()
	assert.Empty(t, token)
	assert.Nil(t, user)

	_, ok, _ := mem.Get(TokenKey)
	assert.False(t, ok)
	_, ok, _ = mem.Get(UserKey)
	assert.False(t, ok)
}

func TestStore_CorruptUserLoadsAsAbsent(t *testing.T) {
	mem := storage.NewMemory()
	require.NoError(t, mem.Set(TokenKey, "tok"))
	require.NoError(t, mem.Set(UserKey, "{broken"))

	token, user := New(mem, zerolog.Nop()).Load()
	assert.Equal(t, "tok", token)
	assert.Nil(t, user)
}

func TestStore_BrokenStorageNeverPanics(t *testing.T) {
	store := New(brokenStorage{}, zerolog.Nop())

	assert.NotPanics(t, func() {
		store.Save("tok", &api.User{ID: 1})
		store.Clear()
		token, user := store.Load()
		assert.Empty(t, token)
		assert.Nil(t, user)
	})
}

package gateway

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/huegate/internal/credentials"
)

func TestStoredSessions_CachesAfterFirstLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge_info.json")
	store := credentials.NewStore(path)
	src := NewStoredSessions(store)

	_, err := src.Session(context.Background())
	assert.ErrorIs(t, err, credentials.ErrNotFound)

	require.NoError(t, store.Save(credentials.Credential{IPAddress: "192.168.1.10", ClientToken: "a"}))
	first, err := src.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", first.Address())

	// Later writes are ignored while a session is held
	require.NoError(t, store.Save(credentials.Credential{IPAddress: "192.168.1.11", ClientToken: "b"}))
	again, err := src.Session(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)

	src.Invalidate()
	reloaded, err := src.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.11", reloaded.Address())
}

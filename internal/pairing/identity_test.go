package pairing

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardwareAddr(t *testing.T) {
	mac, _ := net.ParseMAC("ec:b5:fa:1a:2b:3c")
	h := HardwareAddr{interfaces: func() ([]net.Interface, error) {
		return []net.Interface{
			{Name: "lo", Flags: net.FlagLoopback | net.FlagUp},
			{Name: "tun0", Flags: net.FlagUp},
			{Name: "dummy0", HardwareAddr: net.HardwareAddr{0, 0, 0, 0, 0, 0}},
			{Name: "eth0", HardwareAddr: mac, Flags: net.FlagUp},
		}, nil
	}}

	id, ok := h.Identity()
	require.True(t, ok)
	assert.Equal(t, "ecb5fa1a2b3c", id)
}

func TestHardwareAddr_Unavailable(t *testing.T) {
	none := HardwareAddr{interfaces: func() ([]net.Interface, error) {
		return []net.Interface{{Name: "lo", Flags: net.FlagLoopback}}, nil
	}}
	_, ok := none.Identity()
	assert.False(t, ok)

	failing := HardwareAddr{interfaces: func() ([]net.Interface, error) {
		return nil, errors.New("permission denied")
	}}
	_, ok = failing.Identity()
	assert.False(t, ok)
}

func TestFileUUID_PersistsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "client_id")
	f := FileUUID{Path: path}

	first, ok := f.Identity()
	require.True(t, ok)
	_, err := uuid.Parse(first)
	require.NoError(t, err)

	second, ok := f.Identity()
	require.True(t, ok)
	assert.Equal(t, first, second)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileUUID_ReplacesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_id")
	require.NoError(t, os.WriteFile(path, []byte("not-a-uuid"), 0600))

	id, ok := FileUUID{Path: path}.Identity()
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestFileUUID_NoPath(t *testing.T) {
	_, ok := FileUUID{}.Identity()
	assert.False(t, ok)
}

func TestFirstOf(t *testing.T) {
	missing := IdentityFunc(func() (string, bool) { return "", false })
	empty := IdentityFunc(func() (string, bool) { return "", true })
	fixed := IdentityFunc(func() (string, bool) { return "abc", true })

	id, ok := FirstOf(missing, empty, fixed).Identity()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = FirstOf(missing).Identity()
	assert.False(t, ok)

	_, ok = FirstOf().Identity()
	assert.False(t, ok)
}

package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/huegate/internal/config"
)

func TestNewServices_WithoutDatabase(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	s, err := NewServices(cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.DB)
	assert.Nil(t, s.Ledger)
	assert.Nil(t, s.Recorder)
	assert.NotNil(t, s.Gateway)
	assert.NotNil(t, s.Controller)
}

func TestNewServices_WithDatabase(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "huegate.db")

	s, err := NewServices(cfg)
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.Ledger)
	assert.NotNil(t, s.Recorder)

	entries, err := s.Ledger.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewServices_BadDatabasePath(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing", "dir", "huegate.db")

	_, err = NewServices(cfg)
	assert.Error(t, err)
}

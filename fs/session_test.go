package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"danyak/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitUsesDanyakHome(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	t.Setenv("DANYAK_HOME", dir)

	require.NoError(t, Init())

	assert.Equal(t, dir, HomeDanyakDir)
	assert.Equal(t, filepath.Join(dir, "session.json"), HomeSessionPath)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), HomeConfigPath)
	assert.Equal(t, filepath.Join(dir, "danyak.log"), HomeLogPath)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileSessionStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	storage := NewFileSessionStorage(path)

	session, err := storage.Load()
	require.NoError(t, err)
	assert.Nil(t, session)

	saved := &types.Session{
		UserId:       "u1",
		Email:        "a@x.com",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, storage.Save(saved))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// a second instance stands in for the next process
	loaded, err := NewFileSessionStorage(path).Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.Email, loaded.Email)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)
	assert.True(t, saved.ExpiresAt.Equal(loaded.ExpiresAt))

	require.NoError(t, storage.Clear())
	require.NoError(t, storage.Clear())

	loaded, err = storage.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileSessionStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileSessionStorage(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error unmarshalling session file")
}

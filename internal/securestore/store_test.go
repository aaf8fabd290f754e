package securestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := Open(path, "test-passphrase")
	require.NoError(t, err)

	require.NoError(t, store.Put("session", `{"access_token":"abc"}`, nil))

	value, err := store.Get("session")
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"abc"}`, value)
}

func TestValuesAreEncryptedOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := Open(path, "test-passphrase")
	require.NoError(t, err)
	require.NoError(t, store.Put("session", "super-secret-token", nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "super-secret-token"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestReopenWithSamePassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := Open(path, "pass")
	require.NoError(t, err)
	require.NoError(t, store.Put("session", "value", nil))

	reopened, err := Open(path, "pass")
	require.NoError(t, err)

	value, err := reopened.Get("session")
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestReopenWithWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := Open(path, "pass")
	require.NoError(t, err)
	require.NoError(t, store.Put("session", "value", nil))

	reopened, err := Open(path, "other")
	require.NoError(t, err)

	_, err = reopened.Get("session")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.Error(t, reopened.Verify())
	assert.NoError(t, store.Verify())
}

func TestGetMissing(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "credentials.json"), "pass")
	require.NoError(t, err)

	_, err = store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredEntry(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "credentials.json"), "pass")
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Put("old", "value", &past))

	_, err = store.Get("old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path, "pass")
	require.NoError(t, err)

	require.NoError(t, store.Put("a", "1", nil))
	require.NoError(t, store.Put("b", "2", nil))
	assert.Equal(t, []string{"a", "b"}, store.Names())

	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("missing"))
	assert.Equal(t, []string{"b"}, store.Names())

	reopened, err := Open(path, "pass")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, reopened.Names())
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := Open(path, "pass")
	assert.Error(t, err)
}

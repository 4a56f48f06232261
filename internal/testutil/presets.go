package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// MalformedJSON is content that opens like JSON but never closes.
var MalformedJSON = []byte(`{"version": "1.0.0", "metadata": {"name": "broken"`)

// WriteFile writes content to dir/name with the permissions the registry
// uses, for tests that simulate edits made outside the registry.
func WriteFile(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// ReadFile returns the content of dir/name.
func ReadFile(t testing.TB, dir, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return data
}

// Exists reports whether dir/name exists.
func Exists(t testing.TB, dir, name string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

package company

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDefaultMapping(t *testing.T) {
	dir, err := Load("")
	require.NoError(t, err)

	id, err := dir.Lookup("bamo_company")
	require.NoError(t, err)
	assert.Equal(t, "c12585ee-c8f4-4103-b7f0-37bd62401a65", id)
}

func TestLookupPassesUUIDThrough(t *testing.T) {
	dir, err := NewDirectory(nil)
	require.NoError(t, err)

	id, err := dir.Lookup("C12585EE-C8F4-4103-B7F0-37BD62401A65")
	require.NoError(t, err)
	assert.Equal(t, "c12585ee-c8f4-4103-b7f0-37bd62401a65", id)
}

func TestLookupUnknownNamesAvailable(t *testing.T) {
	dir, err := Load("")
	require.NoError(t, err)

	_, err = dir.Lookup("acme")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCompany))
	assert.Contains(t, err.Error(), "bamo_company")
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.yaml")
	content := "companies:\n  acme: 7f1f7a3e-2a55-4c55-9d7a-0e4c2b8f1a10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	dir, err := Load(path)
	require.NoError(t, err)
	id, err := dir.Lookup("acme")
	require.NoError(t, err)
	assert.Equal(t, "7f1f7a3e-2a55-4c55-9d7a-0e4c2b8f1a10", id)
	assert.Equal(t, []string{"acme"}, dir.Names())
}

func TestNewDirectoryRejectsInvalidUUID(t *testing.T) {
	_, err := NewDirectory(map[string]string{"acme": "not-a-uuid"})
	assert.Error(t, err)
}

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinventory/internal/storage/jsonfile"
	"netinventory/internal/storage/sqlite"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	log := logrus.New()

	s, err := Open(BackendJSON, filepath.Join(dir, "inventario.json"), log)
	require.NoError(t, err)
	assert.IsType(t, &jsonfile.Store{}, s)

	s, err = Open(BackendSQLite, filepath.Join(dir, "inventory.db"), log)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	defer s.Close()

	inv, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Len())

	_, err = Open("postgres", "", log)
	assert.Error(t, err)
}

// Package storage defines how an inventory is persisted and opens the
// configured backend.
package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"netinventory/internal/inventory"
	"netinventory/internal/storage/jsonfile"
	"netinventory/internal/storage/sqlite"
)

// Store loads and saves a whole inventory at once
type Store interface {
	// Load builds a fresh inventory from the backend. An empty or missing
	// backend yields an empty inventory.
	Load(ctx context.Context) (*inventory.Inventory, error)
	// Save replaces the persisted state with inv
	Save(ctx context.Context, inv *inventory.Inventory) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

var (
	_ Store = (*jsonfile.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open returns the store for backend at path. Inventories it loads are
// created with opts.
func Open(backend, path string, log logrus.FieldLogger, opts ...inventory.Option) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return jsonfile.New(path, jsonfile.WithLogger(log), jsonfile.WithInventoryOptions(opts...)), nil
	case BackendSQLite:
		return sqlite.New(path, sqlite.WithLogger(log), sqlite.WithInventoryOptions(opts...))
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}

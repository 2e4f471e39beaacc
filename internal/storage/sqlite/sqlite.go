// Package sqlite persists the inventory in a SQLite database, one row per
// device, using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"netinventory/internal/codec"
	"netinventory/internal/inventory"
	"netinventory/internal/logging"
)

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used to report skipped records
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithInventoryOptions sets the options passed to loaded inventories
func WithInventoryOptions(opts ...inventory.Option) Option {
	return func(s *Store) {
		s.invOpts = opts
	}
}

// Store implements inventory persistence on SQLite
type Store struct {
	db      *sql.DB
	log     logrus.FieldLogger
	invOpts []inventory.Option
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. ":memory:" gives a private in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.log, "sqlite")

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func dsn(dbPath string) string {
	if dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return dbPath
	}
	return "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		name TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		ipv4 TEXT,
		mac_address TEXT,
		position INTEGER NOT NULL,
		data JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_devices_type ON devices(type);
	CREATE INDEX IF NOT EXISTS idx_devices_position ON devices(position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load rebuilds the inventory from rows in their saved order
func (s *Store) Load(ctx context.Context) (*inventory.Inventory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, data FROM devices ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var records []codec.Record
	for rows.Next() {
		var (
			name string
			data []byte
		)
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		var rec codec.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device %s: %w", name, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	inv, skipped, err := codec.Decode(records, s.invOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}
	for _, rec := range skipped {
		s.log.WithFields(logrus.Fields{"device": rec.Name, "type": rec.Type}).Warn("skipping row with unknown type")
	}
	return inv, nil
}

// Save replaces every row with the devices of inv in one transaction
func (s *Store) Save(ctx context.Context, inv *inventory.Inventory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM devices`); err != nil {
		return fmt.Errorf("failed to clear devices: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO devices (name, type, status, ipv4, mac_address, position, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare device statement: %w", err)
	}
	defer stmt.Close()

	records := codec.Encode(inv)
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal device %s: %w", rec.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Name, rec.Type, rec.Status,
			stringToNull(rec.IPv4), stringToNull(rec.MACAddress), i, data); err != nil {
			return fmt.Errorf("failed to insert device %s: %w", rec.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES ('device_count', ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, fmt.Sprint(len(records))); err != nil {
		return fmt.Errorf("failed to store device count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithField("count", len(records)).Debug("inventory saved")
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// stringToNull maps an empty string to SQL NULL
func stringToNull(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// Package jsonfile persists the inventory as a flat JSON array in a single
// file, the format the command-line tool and the server share.
package jsonfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

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

// Store reads and writes one JSON file
type Store struct {
	path    string
	codec   *codec.JSONCodec
	log     logrus.FieldLogger
	invOpts []inventory.Option
}

// New creates a store for the file at path. The file need not exist yet.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:  path,
		codec: codec.NewJSONCodec(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.log, "jsonfile")
	return s
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty inventory; records of an
// unknown type are logged and skipped.
func (s *Store) Load(ctx context.Context) (*inventory.Inventory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.WithField("path", s.path).Debug("inventory file not found, starting empty")
		return inventory.New(s.invOpts...), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}

	records, err := s.codec.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.path)
	}

	inv, skipped, err := codec.Decode(records, s.invOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", s.path)
	}
	for _, rec := range skipped {
		s.log.WithFields(logrus.Fields{"device": rec.Name, "type": rec.Type}).Warn("skipping record with unknown type")
	}
	return inv, nil
}

// Save writes inv to a temporary file next to the target and renames it
// into place.
func (s *Store) Save(ctx context.Context, inv *inventory.Inventory) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.codec.Export(codec.Encode(inv), &buf); err != nil {
		return errors.Wrap(err, "encode inventory")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "replace %s", s.path)
	}

	s.log.WithFields(logrus.Fields{"path": s.path, "count": inv.Len()}).Debug("inventory saved")
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *Store) Close() error {
	return nil
}

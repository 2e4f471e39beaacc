// Package codec converts devices to and from their persisted record form and
// moves records through the supported file formats.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnknownFormat is returned when no codec serves the requested format
var ErrUnknownFormat = errors.New("unknown format")

// Importer reads device records from a format
type Importer interface {
	Parse(r io.Reader) ([]Record, error)
	Format() string
}

// Exporter writes device records in a format
type Exporter interface {
	Export(records []Record, w io.Writer) error
	Format() string
	ContentType() string
}

// LookupExporter returns the exporter for format (json, yaml or ansible)
func LookupExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "ansible":
		return NewAnsibleCodec(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// LookupImporter returns the importer for format (json or yaml). Ansible
// inventories carry too little to rebuild devices and are export-only.
func LookupImporter(format string) (Importer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

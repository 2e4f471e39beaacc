package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCodec reads and writes the flat JSON array used by the inventory file
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of exported documents
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Parse reads a JSON array of device records. An empty document is an empty
// inventory.
func (c *JSONCodec) Parse(r io.Reader) ([]Record, error) {
	var records []Record
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&records); err != nil {
		if err == io.EOF {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Export writes records as an indented JSON array
func (c *JSONCodec) Export(records []Record, w io.Writer) error {
	if records == nil {
		records = []Record{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

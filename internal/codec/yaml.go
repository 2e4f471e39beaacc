package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of exported documents
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// yamlDocument is the top-level YAML structure
type yamlDocument struct {
	Devices []Record `yaml:"devices"`
}

// Parse reads the devices list from YAML
func (c *YAMLCodec) Parse(r io.Reader) ([]Record, error) {
	var doc yamlDocument
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Devices == nil {
		doc.Devices = []Record{}
	}
	return doc.Devices, nil
}

// Export writes records under a top-level devices key
func (c *YAMLCodec) Export(records []Record, w io.Writer) error {
	doc := yamlDocument{Devices: records}
	if doc.Devices == nil {
		doc.Devices = []Record{}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

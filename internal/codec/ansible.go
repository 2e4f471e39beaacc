package codec

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnsibleCodec exports the inventory as an Ansible YAML inventory, one
// child group per device type.
type AnsibleCodec struct{}

// NewAnsibleCodec creates a new Ansible codec
func NewAnsibleCodec() *AnsibleCodec {
	return &AnsibleCodec{}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return "ansible"
}

// ContentType returns the MIME type of exported documents
func (c *AnsibleCodec) ContentType() string {
	return "application/yaml"
}

// ansibleInventory represents the Ansible inventory structure
type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string         `yaml:"ansible_host,omitempty"`
	Vars        map[string]any `yaml:",inline"`
}

// groupName returns the inventory group for a device type tag
func groupName(deviceType string) string {
	t := strings.ToLower(deviceType)
	if t == "switch" {
		return "switches"
	}
	return t + "s"
}

// Export writes records grouped by type. Devices with an IPv4 address get
// it as ansible_host; identifying fields become host vars.
func (c *AnsibleCodec) Export(records []Record, w io.Writer) error {
	inv := ansibleInventory{
		All: ansibleGroup{
			Children: make(map[string]ansibleGroupDef),
		},
	}

	for _, rec := range records {
		group := groupName(rec.Type)
		def, ok := inv.All.Children[group]
		if !ok {
			def = ansibleGroupDef{Hosts: make(map[string]ansibleHost)}
			inv.All.Children[group] = def
		}
		def.Hosts[rec.Name] = ansibleHost{
			AnsibleHost: rec.IPv4,
			Vars:        hostVars(rec),
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}

	return nil
}

func hostVars(rec Record) map[string]any {
	vars := map[string]any{
		"device_type": rec.Type,
		"status":      rec.Status,
	}
	set := func(key, value string) {
		if value != "" {
			vars[key] = value
		}
	}
	set("mac_address", rec.MACAddress)
	set("ipv6", rec.IPv6)
	set("ssid", rec.SSID)
	set("user_id", rec.UserID)
	set("model", rec.Model)
	if rec.Ports > 0 {
		vars["ports"] = rec.Ports
	}
	return vars
}

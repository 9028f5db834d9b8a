package device

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// ClassMeta is one class-code's descriptive metadata: a human name and,
// optionally, per-attribute names — the EDS-derived seed data the teacher's
// eds.go parses out of a vendor .eds file, here expressed as a small
// embeddable TOML table instead of a hand-rolled INI-dialect parser.
type ClassMeta struct {
	Name       string            `toml:"name"`
	Attributes map[string]string `toml:"attributes"`
}

// Catalog is a class-code-keyed metadata table, loaded once at startup and
// held on Device.Catalog; Name and AttributeName look up display names.
type Catalog struct {
	Classes map[string]ClassMeta `toml:"class"`
}

// LoadCatalog parses a TOML class-metadata document. A zero Catalog (no
// classes) is a valid, if uninformative, result — callers fall back to the
// bare class-code hex string when a name is unset.
func LoadCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("device: parsing EDS catalog: %w", err)
	}
	return &cat, nil
}

// Name returns the catalog's display name for classCode in hex, falling
// back to a bare hex string when the class has no catalog entry.
func (c *Catalog) Name(classCode int) string {
	if c == nil {
		return fmt.Sprintf("0x%02X", classCode)
	}
	meta, ok := c.Classes[fmt.Sprintf("0x%02X", classCode)]
	if !ok || meta.Name == "" {
		return fmt.Sprintf("0x%02X", classCode)
	}
	return meta.Name
}

// AttributeName returns the catalog's display name for one attribute of a
// class, falling back to a bare decimal string.
func (c *Catalog) AttributeName(classCode, attr int) string {
	fallback := fmt.Sprintf("%d", attr)
	if c == nil {
		return fallback
	}
	meta, ok := c.Classes[fmt.Sprintf("0x%02X", classCode)]
	if !ok {
		return fallback
	}
	if name, ok := meta.Attributes[fallback]; ok {
		return name
	}
	return fallback
}

// DefaultCatalog names the standard classes this stack registers by
// default, the same set original_source's cpppo EDS table names for a
// generic adapter.
func DefaultCatalog() *Catalog {
	return &Catalog{Classes: map[string]ClassMeta{
		"0x01": {Name: "Identity"},
		"0x02": {Name: "Message Router"},
		"0x04": {Name: "Assembly"},
		"0x06": {Name: "Connection Manager"},
		"0x6B": {Name: "Symbol"},
		"0x6C": {Name: "Template"},
		"0xF5": {Name: "TCP/IP Interface"},
		"0xF6": {Name: "Ethernet Link"},
	}}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/industrialgo/cipstack/cip"
)

// RouteDocument is a standalone YAML alternative to the `[UCMM] route`
// JSON-object form (§6), for route tables too large to comfortably read
// as a single-line TOML string. Grounded on warlogix/config's yaml.v3
// document style: a flat list of entries rather than an inline map, since
// a link range ("1-15") isn't itself a well-typed YAML map key.
type RouteDocument struct {
	Routes []RouteEntry `yaml:"routes"`
}

// RouteEntry is one line of the route table: "port/link" or "port/lo-hi"
// mapped to a downstream host:port. An IP-address link ("port/ip") is not
// accepted.
type RouteEntry struct {
	Match    string `yaml:"match"`
	HostPort string `yaml:"host"`
}

// LoadRouteDocument parses a YAML route table document from path.
func LoadRouteDocument(path string) (*RouteDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading route table %s: %w", path, err)
	}
	var doc RouteDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing route table %s: %w", path, err)
	}
	return &doc, nil
}

// BuildRouteTable compiles a RouteDocument into a cip.RouteTable, resolving
// each "port/link[-range]" match string into a cip.RouteEntry.
func BuildRouteTable(doc *RouteDocument) (*cip.RouteTable, error) {
	entries := make([]cip.RouteEntry, 0, len(doc.Routes))
	for _, r := range doc.Routes {
		e, err := parseRouteMatch(r.Match, r.HostPort)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Match, err)
		}
		entries = append(entries, e)
	}
	return cip.NewRouteTable(entries), nil
}

// parseRouteMatch parses one "port/link" or "port/lo-hi" route key. An
// IP-form link ("port/ip") is rejected with a "bad link" error: matching
// happens purely against the Segment's numeric Link field, which
// cip/epath.go only populates for the non-IP port-segment form.
func parseRouteMatch(match, hostPort string) (cip.RouteEntry, error) {
	parts := strings.SplitN(match, "/", 2)
	if len(parts) != 2 {
		return cip.RouteEntry{}, fmt.Errorf("expected port/link, got %q", match)
	}
	port, err := strconv.Atoi(parts[0])
	if err != nil {
		return cip.RouteEntry{}, fmt.Errorf("bad port %q: %w", parts[0], err)
	}
	lo, hi, err := parseLinkRange(parts[1])
	if err != nil {
		return cip.RouteEntry{}, err
	}
	if hostPort == "" {
		return cip.RouteEntry{}, fmt.Errorf("missing host for route %q", match)
	}
	return cip.RouteEntry{Port: port, LinkLo: lo, LinkHi: hi, HostPort: hostPort}, nil
}

func parseLinkRange(s string) (lo, hi int, err error) {
	if i := strings.IndexByte(s, '-'); i >= 0 {
		lo, err = strconv.Atoi(s[:i])
		if err != nil {
			return 0, 0, fmt.Errorf("bad link range %q: %w", s, err)
		}
		hi, err = strconv.Atoi(s[i+1:])
		if err != nil {
			return 0, 0, fmt.Errorf("bad link range %q: %w", s, err)
		}
		return lo, hi, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, 0, fmt.Errorf("bad link %q: %w", s, err)
	}
	return v, v, nil
}

// Package config loads the stack's TOML configuration document into the
// object model consumed by device.New, cip.Dispatcher, and client.Poller.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/device"
)

// IdentitySection is the `[Identity]` table (§6): the values a server
// advertises about itself through the Identity object and List Identity
// replies.
type IdentitySection struct {
	VendorNumber            uint16 `toml:"vendor_number"`
	DeviceType              uint16 `toml:"device_type"`
	ProductCodeNumber       uint16 `toml:"product_code_number"`
	ProductRevision         string `toml:"product_revision"` // "major.minor"
	StatusWord              uint16 `toml:"status_word"`
	SerialNumber            uint32 `toml:"serial_number"`
	ProductName             string `toml:"product_name"`
	State                   uint8  `toml:"state"`
	ConfigConsistencyValue  uint16 `toml:"configuration_consistency_value"`
	HeartbeatInterval       uint8  `toml:"heartbeat_interval"`
}

// TCPIPSection is the `[TCPIP]` table. PathToPhysicalLink and
// InterfaceConfiguration are stored as raw JSON strings in the TOML
// document (the spec's "JSON literal" columns) and decoded on demand.
type TCPIPSection struct {
	InterfaceStatus        uint32 `toml:"interface_status"`
	ConfigurationCapability uint32 `toml:"configuration_capability"`
	ConfigurationControl   uint32 `toml:"configuration_control"`
	HostName               string `toml:"host_name"`
	PathToPhysicalLink     string `toml:"path_to_physical_link"` // JSON EPATH, e.g. "[]"
	InterfaceConfiguration string `toml:"interface_configuration"`
}

// interfaceConfigJSON is the decoded shape of TCPIPSection.InterfaceConfiguration.
type interfaceConfigJSON struct {
	IPAddress      string `json:"ip_address"`
	GatewayAddress string `json:"gateway_address"`
	NetworkMask    string `json:"network_mask"`
	DNSPrimary     string `json:"dns_primary"`
	DNSSecondary   string `json:"dns_secondary"`
	DomainName     string `json:"domain_name"`
}

// UCMMSection is the `[UCMM]` table. RoutePath and Route are raw JSON
// strings per §6; RoutePath may also be the literal `null` or `false`.
type UCMMSection struct {
	RoutePath string `toml:"route_path"`
	Route     string `toml:"route"`
}

// OriginatorSection configures the client-side (Originator, in CIP terms:
// the device that establishes the connection) polling behavior — the
// spec names this section but leaves its options to the implementation
// (§9 Open Question); modeled on original_source/server/enip/poll.py's
// cycle/depth/multiple/timeout arguments.
type OriginatorSection struct {
	Host              string  `toml:"host"`
	CycleMillis       int     `toml:"cycle_ms"`
	PipelineDepth     int     `toml:"pipeline_depth"`
	MultipleBudget    int     `toml:"multiple_budget"`
	TimeoutMillis     int     `toml:"timeout_ms"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
}

// Document is the full parsed configuration document (§6).
type Document struct {
	Identity   IdentitySection    `toml:"Identity"`
	TCPIP      TCPIPSection       `toml:"TCPIP"`
	UCMM       UCMMSection        `toml:"UCMM"`
	Originator OriginatorSection  `toml:"Originator"`
}

// Load reads and parses a TOML configuration document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := Validate(&doc); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &doc, nil
}

// Validate checks the document for the minimum coherent settings a server
// needs to start, matching the teacher's fail-fast-at-startup convention
// (a configuration error is fatal to the process, per §7).
func Validate(doc *Document) error {
	if doc.Identity.ProductName == "" {
		doc.Identity.ProductName = "cipstack gateway"
	}
	if doc.Identity.VendorNumber == 0 {
		doc.Identity.VendorNumber = 1
	}
	if doc.TCPIP.InterfaceConfiguration != "" {
		var ifc interfaceConfigJSON
		if err := json.Unmarshal([]byte(doc.TCPIP.InterfaceConfiguration), &ifc); err != nil {
			return fmt.Errorf("[TCPIP] interface_configuration: %w", err)
		}
		if ifc.IPAddress != "" && net.ParseIP(ifc.IPAddress) == nil {
			return fmt.Errorf("[TCPIP] interface_configuration.ip_address %q is not a valid IP", ifc.IPAddress)
		}
	}
	if rp := strings.TrimSpace(doc.UCMM.RoutePath); rp != "" && rp != "null" && rp != "false" {
		var raw []map[string]any
		if err := json.Unmarshal([]byte(rp), &raw); err != nil {
			return fmt.Errorf("[UCMM] route_path: %w", err)
		}
	}
	return nil
}

// DeviceConfig builds a device.Config from the parsed document, ready to
// pass to device.New.
func DeviceConfig(doc *Document) device.Config {
	rev := parseRevision(doc.Identity.ProductRevision)
	cfg := device.Config{
		Identity: device.IdentityConfig{
			VendorID:     doc.Identity.VendorNumber,
			DeviceType:   doc.Identity.DeviceType,
			ProductCode:  doc.Identity.ProductCodeNumber,
			Revision:     rev,
			SerialNumber: doc.Identity.SerialNumber,
			ProductName:  doc.Identity.ProductName,
		},
	}
	if doc.TCPIP.InterfaceConfiguration != "" {
		var ifc interfaceConfigJSON
		_ = json.Unmarshal([]byte(doc.TCPIP.InterfaceConfiguration), &ifc)
		cfg.Network = device.NetworkConfig{
			IP:      net.ParseIP(ifc.IPAddress),
			Netmask: net.ParseIP(ifc.NetworkMask),
			Gateway: net.ParseIP(ifc.GatewayAddress),
		}
	}
	if cfg.Network.IP == nil {
		cfg.Network.IP = net.ParseIP("127.0.0.1")
	}
	return cfg
}

func parseRevision(s string) [2]byte {
	if s == "" {
		return [2]byte{1, 0}
	}
	parts := strings.SplitN(s, ".", 2)
	major, _ := strconv.Atoi(parts[0])
	var minor int
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	return [2]byte{byte(major), byte(minor)}
}

// RoutePolicy decodes the `[UCMM] route_path` value into a
// cip.RoutePathPolicy plus, for the exact-match case, the required
// segments — §4.5's "null / exact / false" tri-state.
func RoutePolicy(doc *Document) (cip.RoutePathPolicy, []cip.Segment, error) {
	rp := strings.TrimSpace(doc.UCMM.RoutePath)
	switch rp {
	case "", "null":
		return cip.RoutePathAny, nil, nil
	case "false":
		return cip.RoutePathNone, nil, nil
	}
	segs, err := decodeJSONPath(rp)
	if err != nil {
		return 0, nil, fmt.Errorf("[UCMM] route_path: %w", err)
	}
	return cip.RoutePathExact, segs, nil
}

// decodeJSONPath decodes the spec's JSON-EPATH form, an array of
// {"class":n} / {"instance":n} / {"attribute":n} / {"element":n} objects,
// the same shape client.parseJSONOperation accepts for operation paths.
func decodeJSONPath(raw string) ([]cip.Segment, error) {
	var entries []map[string]int
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	segs := make([]cip.Segment, 0, len(entries))
	for _, e := range entries {
		switch {
		case has(e, "class"):
			segs = append(segs, cip.Segment{Kind: cip.SegClass, Value: e["class"]})
		case has(e, "instance"):
			segs = append(segs, cip.Segment{Kind: cip.SegInstance, Value: e["instance"]})
		case has(e, "attribute"):
			segs = append(segs, cip.Segment{Kind: cip.SegAttribute, Value: e["attribute"]})
		case has(e, "element"):
			segs = append(segs, cip.Segment{Kind: cip.SegElement, Value: e["element"]})
		default:
			return nil, fmt.Errorf("unrecognized path segment %v", e)
		}
	}
	return segs, nil
}

func has(m map[string]int, key string) bool {
	_, ok := m[key]
	return ok
}

// OriginatorTimeouts derives the client-side timing knobs from the
// [Originator] section, applying the same defaults client.PollConfig
// itself falls back to when a field is left zero.
func OriginatorTimeouts(doc *Document) (cycle, timeout time.Duration, depth, budget int, multiplier float64) {
	cycle = time.Duration(doc.Originator.CycleMillis) * time.Millisecond
	timeout = time.Duration(doc.Originator.TimeoutMillis) * time.Millisecond
	depth = doc.Originator.PipelineDepth
	budget = doc.Originator.MultipleBudget
	multiplier = doc.Originator.BackoffMultiplier
	if cycle <= 0 {
		cycle = time.Second
	}
	if multiplier <= 1 {
		multiplier = 1.5
	}
	return
}

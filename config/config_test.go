package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/industrialgo/cipstack/cip"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, "config.toml", `
[Identity]
serial_number = 42
`)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Identity.ProductName != "cipstack gateway" {
		t.Fatalf("ProductName = %q, want default", doc.Identity.ProductName)
	}
	if doc.Identity.VendorNumber != 1 {
		t.Fatalf("VendorNumber = %d, want default 1", doc.Identity.VendorNumber)
	}
	if doc.Identity.SerialNumber != 42 {
		t.Fatalf("SerialNumber = %d, want 42", doc.Identity.SerialNumber)
	}
}

func TestLoadRejectsBadInterfaceConfiguration(t *testing.T) {
	path := writeTemp(t, "config.toml", `
[TCPIP]
interface_configuration = '{"ip_address":"not-an-ip"}'
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an invalid ip_address")
	}
}

func TestDeviceConfigFromDocument(t *testing.T) {
	path := writeTemp(t, "config.toml", `
[Identity]
vendor_number = 7
product_revision = "3.2"

[TCPIP]
interface_configuration = '{"ip_address":"10.0.0.5","network_mask":"255.255.255.0"}'
`)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := DeviceConfig(doc)
	if cfg.Identity.VendorID != 7 {
		t.Fatalf("VendorID = %d, want 7", cfg.Identity.VendorID)
	}
	if cfg.Identity.Revision != ([2]byte{3, 2}) {
		t.Fatalf("Revision = %v, want {3,2}", cfg.Identity.Revision)
	}
	if cfg.Network.IP.String() != "10.0.0.5" {
		t.Fatalf("Network.IP = %v, want 10.0.0.5", cfg.Network.IP)
	}
}

func TestRoutePolicyTriState(t *testing.T) {
	cases := []struct {
		routePath string
		want      cip.RoutePathPolicy
	}{
		{"", cip.RoutePathAny},
		{"null", cip.RoutePathAny},
		{"false", cip.RoutePathNone},
	}
	for _, tc := range cases {
		doc := &Document{UCMM: UCMMSection{RoutePath: tc.routePath}}
		policy, segs, err := RoutePolicy(doc)
		if err != nil {
			t.Fatalf("RoutePolicy(%q): %v", tc.routePath, err)
		}
		if policy != tc.want {
			t.Fatalf("RoutePolicy(%q) = %v, want %v", tc.routePath, policy, tc.want)
		}
		if len(segs) != 0 {
			t.Fatalf("RoutePolicy(%q) segs = %v, want none", tc.routePath, segs)
		}
	}
}

func TestRoutePolicyExactPath(t *testing.T) {
	doc := &Document{UCMM: UCMMSection{RoutePath: `[{"class":6},{"instance":1}]`}}
	policy, segs, err := RoutePolicy(doc)
	if err != nil {
		t.Fatalf("RoutePolicy: %v", err)
	}
	if policy != cip.RoutePathExact {
		t.Fatalf("policy = %v, want RoutePathExact", policy)
	}
	if len(segs) != 2 || segs[0].Kind != cip.SegClass || segs[1].Kind != cip.SegInstance {
		t.Fatalf("unexpected segments: %+v", segs)
	}
}

func TestLoadRouteDocumentAndBuildRouteTable(t *testing.T) {
	path := writeTemp(t, "routes.yaml", `
routes:
  - match: "1/0"
    host: "localhost:44818"
  - match: "1/1-15"
    host: "localhost:44819"
`)
	doc, err := LoadRouteDocument(path)
	if err != nil {
		t.Fatalf("LoadRouteDocument: %v", err)
	}
	table, err := BuildRouteTable(doc)
	if err != nil {
		t.Fatalf("BuildRouteTable: %v", err)
	}
	if host, ok := table.Match(cip.Segment{Kind: cip.SegPort, Port: 1, Link: 5}); !ok || host != "localhost:44819" {
		t.Fatalf("Match(1/5) = %q, %v; want localhost:44819, true", host, ok)
	}
	if host, ok := table.Match(cip.Segment{Kind: cip.SegPort, Port: 1, Link: 0}); !ok || host != "localhost:44818" {
		t.Fatalf("Match(1/0) = %q, %v; want localhost:44818, true", host, ok)
	}
	if _, ok := table.Match(cip.Segment{Kind: cip.SegPort, Port: 2, Link: 0}); ok {
		t.Fatal("expected no match on an unconfigured port")
	}
}

func TestParseRouteMatchRejectsMissingHost(t *testing.T) {
	if _, err := parseRouteMatch("1/0", ""); err == nil {
		t.Fatal("expected an error for a route entry with no host")
	}
}

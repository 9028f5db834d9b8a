package enip

import "testing"

func TestIdentityRoundTrip(t *testing.T) {
	id := Identity{
		ProtocolVersion: 1,
		Socket:          SocketAddr{Family: 2, Port: 44818, Addr: 0xC0A80101},
		VendorID:        0x1234,
		DeviceType:      0x0C,
		ProductCode:     42,
		Revision:        [2]byte{1, 2},
		Status:          0x30,
		SerialNumber:    0xCAFEBABE,
		ProductName:     "cipstack gateway",
		State:           3,
	}
	got, err := DecodeIdentity(id.Encode())
	if err != nil {
		t.Fatalf("DecodeIdentity: %v", err)
	}
	if got != id {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, id)
	}
}

func TestDefaultServiceEntryAdvertisesTCPAndUDP(t *testing.T) {
	e := DefaultServiceEntry()
	if e.Capability != 0x0120 {
		t.Fatalf("Capability = 0x%04X, want 0x0120", e.Capability)
	}
	if e.Capability != CapabilityTCP|CapabilityUDP {
		t.Fatalf("Capability = %d, want CapabilityTCP|CapabilityUDP", e.Capability)
	}
	buf := e.Encode()
	if len(buf) != 20 {
		t.Fatalf("encoded length = %d, want 20", len(buf))
	}
}

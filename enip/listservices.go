package enip

import "encoding/binary"

// Communications capability flags carried by a List Services reply.
const (
	CapabilityTCP uint16 = 32
	CapabilityUDP uint16 = 256
)

// ServiceEntry is one entry of a List Services reply: the "Communications"
// service every ENIP device advertises (§2 "ListServices").
type ServiceEntry struct {
	ProtocolVersion uint16
	Capability      uint16
	Name            string // truncated/padded to 16 bytes, NUL-terminated
}

// Encode serializes the entry to its fixed 20-byte wire form.
func (s ServiceEntry) Encode() []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint16(buf[0:2], s.ProtocolVersion)
	binary.LittleEndian.PutUint16(buf[2:4], s.Capability)
	copy(buf[4:20], s.Name)
	return buf
}

// Item wraps the entry as a List Services CPF item.
func (s ServiceEntry) Item() Item {
	return Item{Type: ItemListService, Data: s.Encode()}
}

// DefaultServiceEntry is the "Communications" service every server in this
// stack advertises: TCP explicit messaging plus UDP discovery, capability
// 0x0120 (§8 scenario 1).
func DefaultServiceEntry() ServiceEntry {
	return ServiceEntry{ProtocolVersion: 1, Capability: CapabilityTCP | CapabilityUDP, Name: "Communications"}
}

package enip

import (
	"encoding/binary"
	"fmt"
)

// SocketAddr is the sockaddr_in-shaped structure CIP embeds in a few
// discovery replies (§2 "ListIdentity").
type SocketAddr struct {
	Family uint16
	Port   uint16
	Addr   uint32 // big-endian IPv4, per the CIP spec's network-order sockaddr
}

// Encode serializes a SocketAddr. Family is little-endian per the
// encapsulation layer's byte order; Port and Addr keep network byte order
// because they are raw sockaddr_in fields, not ENIP scalars.
func (s SocketAddr) Encode() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], s.Family)
	binary.BigEndian.PutUint16(buf[2:4], s.Port)
	binary.BigEndian.PutUint32(buf[4:8], s.Addr)
	return buf
}

// Identity is the payload of a List Identity reply item: protocol version,
// socket address, and the vendor/device/serial/name fields carried by the
// Identity object's class attributes (§4.6, ClassIdentity).
type Identity struct {
	ProtocolVersion uint16
	Socket          SocketAddr
	VendorID        uint16
	DeviceType      uint16
	ProductCode     uint16
	Revision        [2]byte
	Status          uint16
	SerialNumber    uint32
	ProductName     string
	State           byte
}

// Encode serializes the identity item body, following the fixed fields
// with a length-prefixed product name string and a trailing device state
// byte, matching the wire order the Identity object's class attributes are
// read in (§4.6).
func (id Identity) Encode() []byte {
	buf := make([]byte, 0, 40+len(id.ProductName))
	head := make([]byte, 2)
	binary.LittleEndian.PutUint16(head, id.ProtocolVersion)
	buf = append(buf, head...)
	buf = append(buf, id.Socket.Encode()...)
	rest := make([]byte, 14)
	binary.LittleEndian.PutUint16(rest[0:2], id.VendorID)
	binary.LittleEndian.PutUint16(rest[2:4], id.DeviceType)
	binary.LittleEndian.PutUint16(rest[4:6], id.ProductCode)
	rest[6], rest[7] = id.Revision[0], id.Revision[1]
	binary.LittleEndian.PutUint16(rest[8:10], id.Status)
	binary.LittleEndian.PutUint32(rest[10:14], id.SerialNumber)
	buf = append(buf, rest...)
	buf = append(buf, byte(len(id.ProductName)))
	buf = append(buf, id.ProductName...)
	buf = append(buf, id.State)
	return buf
}

// Item wraps the identity payload as a List Identity CPF item.
func (id Identity) Item() Item {
	return Item{Type: ItemListIdentity, Data: id.Encode()}
}

// DecodeIdentity parses a List Identity reply item's body, used by the
// client side (device discovery) rather than the server.
func DecodeIdentity(raw []byte) (Identity, error) {
	if len(raw) < 34 {
		return Identity{}, fmt.Errorf("enip: identity item shorter than fixed fields")
	}
	id := Identity{
		ProtocolVersion: binary.LittleEndian.Uint16(raw[0:2]),
		Socket: SocketAddr{
			Family: binary.LittleEndian.Uint16(raw[2:4]),
			Port:   binary.BigEndian.Uint16(raw[4:6]),
			Addr:   binary.BigEndian.Uint32(raw[6:10]),
		},
		VendorID:    binary.LittleEndian.Uint16(raw[18:20]),
		DeviceType:  binary.LittleEndian.Uint16(raw[20:22]),
		ProductCode: binary.LittleEndian.Uint16(raw[22:24]),
		Revision:    [2]byte{raw[24], raw[25]},
		Status:      binary.LittleEndian.Uint16(raw[26:28]),
	}
	id.SerialNumber = binary.LittleEndian.Uint32(raw[28:32])
	n := int(raw[32])
	if 33+n+1 > len(raw) {
		return Identity{}, fmt.Errorf("enip: identity product name overruns item")
	}
	id.ProductName = string(raw[33 : 33+n])
	id.State = raw[33+n]
	return id, nil
}

// Package device assembles the standard CIP classes (Identity, Message
// Router, Assembly, Connection Manager, TCP/IP Interface, Ethernet Link,
// Symbol) and the Logix symbolic tag namespace on top of a cip.Registry.
package device

import (
	"encoding/binary"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/enip"
)

// IdentityConfig seeds the values a server advertises about itself, both
// through the Identity object's attributes and through List Identity
// replies (§4.6, ClassIdentity).
type IdentityConfig struct {
	VendorID     uint16
	DeviceType   uint16
	ProductCode  uint16
	Revision     [2]byte
	SerialNumber uint32
	ProductName  string
}

// DefaultIdentity returns the fallback identity a fresh server advertises
// absent explicit configuration, matching the teacher's baked-in defaults.
func DefaultIdentity() IdentityConfig {
	return IdentityConfig{
		VendorID:     1,
		DeviceType:   0x0C, // communications adapter
		ProductCode:  1,
		Revision:     [2]byte{1, 0},
		SerialNumber: 1,
		ProductName:  "cipstack gateway",
	}
}

// NewIdentityClass builds the Identity class (0x01) with a single instance
// carrying VendorID/DeviceType/ProductCode/Revision/Status/SerialNumber/
// ProductName/State attributes, matching the field layout of
// original_source/server/enip/identity.py.
func NewIdentityClass(cfg IdentityConfig) *cip.Class {
	c := cip.NewClass(cip.ClassIdentity, "Identity")
	in := cip.NewInstance(1)

	in.SetAttribute(uintAttr(1, "VendorID", cip.TypeUINT, uint16(cfg.VendorID)))
	in.SetAttribute(uintAttr(2, "DeviceType", cip.TypeUINT, uint16(cfg.DeviceType)))
	in.SetAttribute(uintAttr(3, "ProductCode", cip.TypeUINT, uint16(cfg.ProductCode)))
	in.SetAttribute(cip.NewRawAttribute(4, "Revision", []byte{cfg.Revision[0], cfg.Revision[1]}))
	statusAttr := uintAttr(5, "Status", cip.TypeUINT, uint16(0))
	statusAttr.Writable = false
	in.SetAttribute(statusAttr)
	in.SetAttribute(uintAttr(6, "SerialNumber", cip.TypeUDINT, cfg.SerialNumber))
	in.SetAttribute(shortStringAttr(7, "ProductName", cfg.ProductName))
	stateAttr := cip.NewAttribute(8, "State", cip.TypeUSINT, 1)
	stateAttr.SetBytes([]byte{3}) // operational
	in.SetAttribute(stateAttr)

	heartbeat := cip.NewAttribute(10, "HeartbeatInterval", cip.TypeUSINT, 1)
	heartbeat.Writable = true
	in.SetAttribute(heartbeat)

	c.SetInstance(1, in)
	return c
}

func uintAttr(no int, name string, t cip.Type, v any) *cip.Attribute {
	a := cip.NewAttribute(no, name, t, 1)
	b, err := cip.EncodeFixed(t, v)
	if err != nil {
		panic(err) // programmer error: mismatched type/value at startup wiring
	}
	a.SetBytes(b)
	return a
}

func shortStringAttr(no int, name, value string) *cip.Attribute {
	return cip.NewRawAttribute(no, name, cip.EncodeSSTRING(value))
}

// Identity builds the enip.Identity discovery payload from the device's
// configured identity and network settings, satisfying
// server.IdentityAdvertiser.
func (d *Device) Identity() enip.Identity {
	cfg := d.identity
	var addr uint32
	if v4 := d.network.IP.To4(); v4 != nil {
		addr = binary.BigEndian.Uint32(v4)
	}
	return enip.Identity{
		ProtocolVersion: 1,
		Socket:          enip.SocketAddr{Family: 2, Port: 44818, Addr: addr},
		VendorID:        cfg.VendorID,
		DeviceType:      cfg.DeviceType,
		ProductCode:     cfg.ProductCode,
		Revision:        cfg.Revision,
		Status:          0,
		SerialNumber:    cfg.SerialNumber,
		ProductName:     cfg.ProductName,
		State:           3,
	}
}

package device

import (
	"encoding/binary"
	"net"

	"github.com/industrialgo/cipstack/cip"
)

// NetworkConfig seeds the TCP/IP Interface object's IP configuration.
type NetworkConfig struct {
	IP      net.IP
	Netmask net.IP
	Gateway net.IP
}

// NewTCPIPInterfaceClass builds the TCP/IP Interface class (0xF5), whose
// instance 1 attribute 5 (Interface Configuration) carries the IP/netmask/
// gateway triple network configuration tools read (§4.6, ClassTCPIPInterface).
func NewTCPIPInterfaceClass(cfg NetworkConfig) *cip.Class {
	c := cip.NewClass(cip.ClassTCPIPInterface, "TCP/IP Interface")
	in := cip.NewInstance(1)

	statusAttr := cip.NewAttribute(1, "InterfaceStatus", cip.TypeUDINT, 1)
	b, _ := cip.EncodeFixed(cip.TypeUDINT, uint32(1)) // configured
	statusAttr.SetBytes(b)
	in.SetAttribute(statusAttr)

	capAttr := cip.NewAttribute(2, "ConfigurationCapability", cip.TypeUDINT, 1)
	cb, _ := cip.EncodeFixed(cip.TypeUDINT, uint32(0x04)) // static config only
	capAttr.SetBytes(cb)
	in.SetAttribute(capAttr)

	ctrlAttr := cip.NewAttribute(3, "ConfigurationControl", cip.TypeUDINT, 1)
	ctrlAttr.Writable = true
	cc, _ := cip.EncodeFixed(cip.TypeUDINT, uint32(0)) // static
	ctrlAttr.SetBytes(cc)
	in.SetAttribute(ctrlAttr)

	physAttr := cip.NewAttribute(4, "PhysicalLinkObject", cip.TypeUDINT, 1)
	pl := []byte{0x01, 0x00, 0x20, byte(cip.ClassEthernetLink)} // path size 1, class EthernetLink
	physAttr.SetBytes(pl)
	in.SetAttribute(physAttr)

	cfgAttr := cip.NewRawAttribute(5, "InterfaceConfiguration", encodeInterfaceConfig(cfg))
	cfgAttr.Writable = true
	in.SetAttribute(cfgAttr)

	hostAttr := cip.NewRawAttribute(6, "HostName", cip.EncodeSTRING(""))
	hostAttr.Writable = true
	in.SetAttribute(hostAttr)

	c.SetInstance(1, in)
	return c
}

// encodeInterfaceConfig serializes the InterfaceConfiguration struct: IP,
// netmask, gateway, then two DNS server slots and a domain name, matching
// CIP Vol2 §5-3.2.2.2; unset servers/domain are left zero.
func encodeInterfaceConfig(cfg NetworkConfig) []byte {
	buf := make([]byte, 20)
	putIPv4(buf[0:4], cfg.IP)
	putIPv4(buf[4:8], cfg.Netmask)
	putIPv4(buf[8:12], cfg.Gateway)
	// buf[12:16], buf[16:20] left zero: primary/secondary name server
	buf = append(buf, 0) // empty domain name, NUL-terminated
	return buf
}

func putIPv4(dst []byte, ip net.IP) {
	v4 := ip.To4()
	if v4 == nil {
		return
	}
	binary.BigEndian.PutUint32(dst, binary.BigEndian.Uint32(v4))
}

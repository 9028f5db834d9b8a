package device

import "github.com/industrialgo/cipstack/cip"

// LinkConfig seeds the Ethernet Link object's interface counters and MAC.
type LinkConfig struct {
	MAC   [6]byte
	Speed uint32 // Mbps
	Full  bool   // full-duplex
}

// NewEthernetLinkClass builds the Ethernet Link class (0xF6): interface
// speed/duplex and MAC address attributes (§4.6, ClassEthernetLink). This
// stack does not track live interface counters, so InterfaceCounters and
// MediaCounters attributes are omitted rather than faked.
func NewEthernetLinkClass(cfg LinkConfig) *cip.Class {
	c := cip.NewClass(cip.ClassEthernetLink, "Ethernet Link")
	in := cip.NewInstance(1)

	speedAttr := cip.NewAttribute(1, "InterfaceSpeed", cip.TypeUDINT, 1)
	sb, _ := cip.EncodeFixed(cip.TypeUDINT, cfg.Speed)
	speedAttr.SetBytes(sb)
	in.SetAttribute(speedAttr)

	var duplex uint32
	if cfg.Full {
		duplex = 2
	} else {
		duplex = 1
	}
	statusAttr := cip.NewAttribute(2, "InterfaceFlags", cip.TypeUDINT, 1)
	fb, _ := cip.EncodeFixed(cip.TypeUDINT, duplex)
	statusAttr.SetBytes(fb)
	in.SetAttribute(statusAttr)

	in.SetAttribute(cip.NewRawAttribute(3, "PhysicalAddress", cfg.MAC[:]))

	c.SetInstance(1, in)
	return c
}

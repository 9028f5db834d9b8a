package device

import (
	"encoding/binary"

	"github.com/industrialgo/cipstack/cip"
)

// readTag implements Read Tag (0x4C): request is elements(UINT); reply is
// type(UINT) followed by that many elements' raw bytes, windowed at the
// element index carried by the request's trailing EPATH element segment
// (§4.5, §3 "EPATH" — `SCADA[3]` and `@22/1/1` at the corresponding byte
// address both target the same storage).
func (d *Device) readTag(class, instance int, req *cip.Request) *cip.Response {
	a, err := attributeOf(d, class, instance)
	if err != nil {
		return errResponse(req.Service, err)
	}
	if len(req.Data) < 2 {
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusPathSegmentError}
	}
	elements := int(binary.LittleEndian.Uint16(req.Data[0:2]))
	elemLen := elemSize(a)
	start := cip.ElementOf(req.Path) * elemLen
	raw, err := a.ReadAt(start, elements*elemLen)
	if err != nil {
		return errResponse(req.Service, err)
	}
	out := make([]byte, 2, 2+len(raw))
	binary.LittleEndian.PutUint16(out, uint16(a.TypeTag))
	out = append(out, raw...)
	return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusSuccess, Data: out}
}

// readTagFragmented implements Read Tag Fragmented (0x52 when targeting a
// tag, disambiguated from Unconnected Send by the caller's class check):
// request is elements(UINT) + offset(UDINT); reply mirrors readTag but
// windowed at the element's base byte plus the fragmentation offset,
// returning a partial-transfer status while more remains (§4.5, §9's
// fragmentation ceiling).
func (d *Device) readTagFragmented(class, instance int, req *cip.Request) *cip.Response {
	a, err := attributeOf(d, class, instance)
	if err != nil {
		return errResponse(req.Service, err)
	}
	if len(req.Data) < 6 {
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusPathSegmentError}
	}
	fragOffset := int(binary.LittleEndian.Uint32(req.Data[2:6]))
	offset := cip.ElementOf(req.Path)*elemSize(a) + fragOffset
	raw := a.Bytes()
	if offset > len(raw) {
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusPathSegmentError}
	}
	limit := d.fragmentLimit()
	end := offset + limit
	more := end < len(raw)
	if !more {
		end = len(raw)
	}
	status := cip.StatusSuccess
	if more {
		status = cip.StatusPartialTransfer
	}
	out := make([]byte, 2, 2+end-offset)
	binary.LittleEndian.PutUint16(out, uint16(a.TypeTag))
	out = append(out, raw[offset:end]...)
	return &cip.Response{Service: cip.ReplyService(req.Service), Status: status, Data: out}
}

// writeTag implements Write Tag (0x4D): request is type(UINT) +
// elements(UINT) + data; the type is trusted to match the tag (as CIP
// masters always send it) but the byte count is bounds-checked. The write
// lands at the element index carried by the request's trailing EPATH
// element segment, not always at element 0.
func (d *Device) writeTag(class, instance int, req *cip.Request) *cip.Response {
	a, err := attributeOf(d, class, instance)
	if err != nil {
		return errResponse(req.Service, err)
	}
	if len(req.Data) < 4 {
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusPathSegmentError}
	}
	payload := req.Data[4:]
	offset := cip.ElementOf(req.Path) * elemSize(a)
	if err := a.WriteAt(offset, payload); err != nil {
		return errResponse(req.Service, err)
	}
	if class == cip.ClassSymbol {
		d.publishWrite(instance)
	}
	return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusSuccess}
}

// writeTagFragmented implements Write Tag Fragmented (0x53): request is
// type(UINT) + elements(UINT) + offset(UDINT) + data, writing a byte window
// into the tag's buffer at the element's base byte plus the fragmentation
// offset (§4.5).
func (d *Device) writeTagFragmented(class, instance int, req *cip.Request) *cip.Response {
	a, err := attributeOf(d, class, instance)
	if err != nil {
		return errResponse(req.Service, err)
	}
	if len(req.Data) < 8 {
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusPathSegmentError}
	}
	fragOffset := int(binary.LittleEndian.Uint32(req.Data[4:8]))
	offset := cip.ElementOf(req.Path)*elemSize(a) + fragOffset
	payload := req.Data[8:]
	if err := a.WriteAt(offset, payload); err != nil {
		return errResponse(req.Service, err)
	}
	if class == cip.ClassSymbol {
		d.publishWrite(instance)
	}
	return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusSuccess}
}

func attributeOf(d *Device, class, instance int) (*cip.Attribute, error) {
	return d.Registry.Resolve(class, instance, 1)
}

// elemSize returns the byte width of one array element of a, falling back
// to 1 for a raw/struct-backed attribute with no fixed-width CIP type
// (e.g. a UDT instance), matching NewAttribute's own fallback.
func elemSize(a *cip.Attribute) int {
	n := cip.FixedLen(a.TypeTag)
	if n == 0 {
		return 1
	}
	return n
}

func (d *Device) fragmentLimit() int {
	if d.Dispatcher != nil && d.Dispatcher.FragmentLimit > 0 {
		return d.Dispatcher.FragmentLimit
	}
	return 500
}

package device

import "github.com/industrialgo/cipstack/cip"

// NewMessageRouterClass builds the Message Router class (0x02). It carries
// no interesting per-instance data of its own — every real request routes
// through cip.Dispatcher directly — but a well-formed Get-Attribute-All on
// its instance 1 is expected by scanning tools, so it advertises the
// object list: attribute 1 holds the number of classes and attribute 2
// their class codes (one UINT each). NumberAvailable and NumberActive are
// not provided.
func NewMessageRouterClass(classCodes []int) *cip.Class {
	c := cip.NewClass(cip.ClassMessageRouter, "Message Router")
	in := cip.NewInstance(1)

	listAttr := cip.NewAttribute(1, "ObjectListLength", cip.TypeUINT, 1)
	b, _ := cip.EncodeFixed(cip.TypeUINT, uint16(len(classCodes)))
	listAttr.SetBytes(b)
	in.SetAttribute(listAttr)

	classList := make([]byte, 0, len(classCodes)*2)
	for _, code := range classCodes {
		cb, _ := cip.EncodeFixed(cip.TypeUINT, uint16(code))
		classList = append(classList, cb...)
	}
	in.SetAttribute(cip.NewRawAttribute(2, "ObjectList", classList))

	c.SetInstance(1, in)
	return c
}

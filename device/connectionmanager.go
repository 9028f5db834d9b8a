package device

import "github.com/industrialgo/cipstack/cip"

// NewConnectionManagerClass builds the Connection Manager class (0x06).
// Its only service this stack implements is Unconnected Send, handled
// directly by cip.Dispatcher before any registry lookup — Forward Open/
// Forward Close (connected/implicit messaging) are out of scope. The class
// still needs an instance so Get-Attribute-All discovery against it
// doesn't fail with an unknown-instance status.
func NewConnectionManagerClass() *cip.Class {
	c := cip.NewClass(cip.ClassConnectionManager, "Connection Manager")
	in := cip.NewInstance(1)
	openAttr := cip.NewAttribute(1, "OpenRequests", cip.TypeUINT, 1)
	in.SetAttribute(openAttr)
	c.SetInstance(1, in)
	return c
}

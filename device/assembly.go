package device

import "github.com/industrialgo/cipstack/cip"

// AssemblyInstance describes one input or output assembly instance to
// create: its instance number and byte size (§4.6, ClassAssembly).
type AssemblyInstance struct {
	Number int
	Size   int
}

// NewAssemblyClass builds the Assembly class (0x04) with one instance per
// entry in instances, each holding a zero-filled Data attribute (3) and a
// Size attribute (4), matching the teacher's CreateDefaultAssemblyClass.
func NewAssemblyClass(instances []AssemblyInstance) *cip.Class {
	c := cip.NewClass(cip.ClassAssembly, "Assembly")
	for _, ai := range instances {
		in := cip.NewInstance(ai.Number)
		data := cip.NewAttribute(3, "Data", cip.TypeBYTE, ai.Size)
		data.Writable = true
		in.SetAttribute(data)
		in.SetAttribute(uintAttr(4, "Size", cip.TypeUINT, uint16(ai.Size)))
		c.SetInstance(ai.Number, in)
	}
	return c
}

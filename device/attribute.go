package device

import "github.com/industrialgo/cipstack/cip"

// WriteBit implements the read-modify-write ("masked write") pattern a CIP
// master uses to set a single BOOL member packed into a UDT-typed tag's
// backing bytes without racing a concurrent write to a sibling bit
// (§4 supplemental feature 3).
func WriteBit(a *cip.Attribute, offset int, bit uint, set bool) error {
	return a.Mutate(func(data []byte) {
		if offset < 0 || offset >= len(data) {
			return
		}
		if set {
			data[offset] |= 1 << bit
		} else {
			data[offset] &^= 1 << bit
		}
	})
}

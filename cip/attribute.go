package cip

import (
	"fmt"
	"sync"
)

// Hook is the capability interface an Attribute's storage policy can
// implement instead of the default raw-buffer behavior (Design Notes,
// "Attribute extensibility") — e.g. to synthesize a value from an external
// service, or to journal writes to a historian.
type Hook interface {
	ReadAt(offset, count int) ([]byte, error)
	WriteAt(offset int, data []byte) error
}

// Attribute is an addressable data container owned by an Instance (§3).
type Attribute struct {
	Number   int
	Name     string
	TypeTag  Type
	Count    int // array cardinality; 0 or 1 means scalar
	Writable bool

	mu   sync.Mutex
	data []byte
	hook Hook
}

// NewAttribute allocates a raw-buffer-backed attribute of typeTag,
// zero-filled to hold count elements (count<=1 for a scalar).
func NewAttribute(number int, name string, typeTag Type, count int) *Attribute {
	elemLen := FixedLen(typeTag)
	if elemLen == 0 {
		elemLen = 1
	}
	n := count
	if n < 1 {
		n = 1
	}
	return &Attribute{
		Number:  number,
		Name:    name,
		TypeTag: typeTag,
		Count:   count,
		data:    make([]byte, elemLen*n),
	}
}

// NewRawAttribute wraps a pre-encoded buffer (used for struct-typed and
// class-metadata attributes whose wire form isn't a single scalar type).
func NewRawAttribute(number int, name string, raw []byte) *Attribute {
	return &Attribute{Number: number, Name: name, data: raw}
}

// SetHook installs a custom read/write implementation.
func (a *Attribute) SetHook(h Hook) { a.hook = h }

// Bytes returns the attribute's current wire-encoded value.
func (a *Attribute) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hook != nil {
		b, err := a.hook.ReadAt(0, len(a.data))
		if err == nil {
			return b
		}
	}
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

// ReadAt returns count bytes starting at offset, honoring a custom hook and
// clamping to the buffer length (used by Read-Tag-Fragmented, §4.5).
func (a *Attribute) ReadAt(offset, count int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hook != nil {
		return a.hook.ReadAt(offset, count)
	}
	if offset < 0 || offset > len(a.data) {
		return nil, fmt.Errorf("cip: read offset %d out of range for %q", offset, a.Name)
	}
	end := offset + count
	if end > len(a.data) {
		end = len(a.data)
	}
	out := make([]byte, end-offset)
	copy(out, a.data[offset:end])
	return out, nil
}

// WriteAt stores data at offset, growing never — the destination must
// already be sized to fit, matching the teacher's fixed-buffer semantics.
func (a *Attribute) WriteAt(offset int, data []byte) error {
	if !a.Writable {
		return &ServiceError{Status: StatusAttrNotSupported, Reason: "attribute " + a.Name + " is read-only"}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hook != nil {
		return a.hook.WriteAt(offset, data)
	}
	if offset < 0 || offset+len(data) > len(a.data) {
		return &ServiceError{Status: StatusTooMuchData, Reason: "write overruns attribute " + a.Name}
	}
	copy(a.data[offset:], data)
	return nil
}

// Mutate runs fn with the attribute locked, letting a caller perform a
// read-modify-write (e.g. a single-bit masked write) without racing a
// concurrent WriteAt to a different region of the same buffer.
func (a *Attribute) Mutate(fn func(data []byte)) error {
	if !a.Writable {
		return &ServiceError{Status: StatusAttrNotSupported, Reason: "attribute " + a.Name + " is read-only"}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hook != nil {
		return fmt.Errorf("cip: Mutate unsupported on a hooked attribute")
	}
	fn(a.data)
	return nil
}

// SetBytes overwrites the whole buffer regardless of Writable, used during
// configuration-time seeding rather than in-band write services.
func (a *Attribute) SetBytes(raw []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = raw
}

// Len returns the attribute's total encoded byte length.
func (a *Attribute) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data)
}

package cip

import (
	"fmt"
	"sort"
	"sync"
)

// Instance is a numbered child of a Class; it owns attributes keyed by
// attribute number. Symbolic tag names are mapped to instance numbers by
// the dispatcher's TagResolver, not by the instance.
type Instance struct {
	Number int

	mu    sync.RWMutex
	attrs map[int]*Attribute
	order []int
}

// NewInstance creates an empty instance.
func NewInstance(number int) *Instance {
	return &Instance{Number: number, attrs: make(map[int]*Attribute)}
}

// SetAttribute installs or replaces an attribute, serialized per-instance
// (§5 "Each class instance is serialized by a per-instance mutex").
func (in *Instance) SetAttribute(a *Attribute) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, exists := in.attrs[a.Number]; !exists {
		in.order = append(in.order, a.Number)
		sort.Ints(in.order)
	}
	in.attrs[a.Number] = a
}

// Attribute looks up an attribute by number.
func (in *Instance) Attribute(no int) (*Attribute, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	a, ok := in.attrs[no]
	return a, ok
}

// GetAttributeAll concatenates every attribute's current bytes in ascending
// attribute-number order (§4.6, service 0x01).
func (in *Instance) GetAttributeAll() []byte {
	in.mu.RLock()
	order := append([]int(nil), in.order...)
	in.mu.RUnlock()
	var out []byte
	for _, no := range order {
		a, _ := in.Attribute(no)
		out = append(out, a.Bytes()...)
	}
	return out
}

// Class is a process-wide registry identified by class code, owning an
// instance[0] class-attribute object and numbered instances (§3 "Class").
type Class struct {
	Code int
	Name string

	mu       sync.RWMutex
	instZero *Instance
	inst     map[int]*Instance
	last     int
}

// NewClass creates a class with a populated instance-0 class-attribute
// object (Revision, MaxInstance, NumInstances, ...), matching the fields
// the teacher's NewClass seeds.
func NewClass(code int, name string) *Class {
	c := &Class{Code: code, Name: name, inst: make(map[int]*Instance)}
	z := NewInstance(0)
	z.SetAttribute(fixedUint16(1, "Revision", 1))
	z.SetAttribute(fixedUint16(2, "MaxInstance", 0))
	z.SetAttribute(fixedUint16(3, "NumInstances", 0))
	c.instZero = z
	return c
}

func fixedUint16(no int, name string, v uint16) *Attribute {
	a := NewAttribute(no, name, TypeUINT, 1)
	b, _ := EncodeFixed(TypeUINT, v)
	a.SetBytes(b)
	return a
}

// SetInstance installs instance no and refreshes the class-attribute
// bookkeeping counters.
func (c *Class) SetInstance(no int, in *Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inst[no] = in
	if no > c.last {
		c.last = no
	}
	c.instZero.SetAttribute(fixedUint16(2, "MaxInstance", uint16(c.last)))
	c.instZero.SetAttribute(fixedUint16(3, "NumInstances", uint16(len(c.inst))))
}

// Instance returns instance no, or the class-attribute object for no==0.
func (c *Class) Instance(no int) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if no == 0 {
		return c.instZero, true
	}
	in, ok := c.inst[no]
	return in, ok
}

// Instances returns instance numbers from instanceFrom onward, ascending,
// capped at maxInstances (0 = unlimited) — backs GetInstanceAttributeList.
func (c *Class) Instances(instanceFrom, maxInstances int) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if instanceFrom <= 0 {
		instanceFrom = 1
	}
	var out []int
	for no := range c.inst {
		if no >= instanceFrom {
			out = append(out, no)
		}
	}
	sort.Ints(out)
	if maxInstances > 0 && len(out) > maxInstances {
		out = out[:maxInstances]
	}
	return out
}

// Registry is the process-wide, write-once-at-startup class table (§5
// "The class registry is write-once at server startup; thereafter
// read-only").
type Registry struct {
	mu      sync.RWMutex
	classes map[int]*Class
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[int]*Class)}
}

// Register installs a class, replacing any prior class at the same code.
func (r *Registry) Register(c *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.Code] = c
}

// Class returns the class registered at code.
func (r *Registry) Class(code int) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[code]
	return c, ok
}

// Resolve looks up (class, instance, attribute) all at once, the shape the
// dispatcher needs after decoding an EPATH.
func (r *Registry) Resolve(class, instance, attribute int) (*Attribute, error) {
	c, ok := r.Class(class)
	if !ok {
		return nil, &ServiceError{Status: StatusPathUnknown, Reason: fmt.Sprintf("unknown class 0x%X", class)}
	}
	in, ok := c.Instance(instance)
	if !ok {
		return nil, &ServiceError{Status: StatusPathUnknown, Reason: fmt.Sprintf("unknown instance %d in class 0x%X", instance, class)}
	}
	a, ok := in.Attribute(attribute)
	if !ok {
		return nil, &ServiceError{Status: StatusAttrNotSupported, Reason: fmt.Sprintf("unknown attribute %d", attribute)}
	}
	return a, nil
}

// ResolveInstance looks up just the instance, used by Get-Attribute-All and
// the tag-fragmented services that address a whole tag.
func (r *Registry) ResolveInstance(class, instance int) (*Instance, error) {
	c, ok := r.Class(class)
	if !ok {
		return nil, &ServiceError{Status: StatusPathUnknown, Reason: fmt.Sprintf("unknown class 0x%X", class)}
	}
	in, ok := c.Instance(instance)
	if !ok {
		return nil, &ServiceError{Status: StatusPathUnknown, Reason: fmt.Sprintf("unknown instance %d in class 0x%X", instance, class)}
	}
	return in, nil
}

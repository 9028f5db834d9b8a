package device

import (
	"sort"
	"sync"

	"github.com/industrialgo/cipstack/automata"
	"github.com/industrialgo/cipstack/cip"
)

// TagNamespace is the Logix symbolic tag namespace (§4 "Logix tags"):
// user-created named data points, exposed both through the Symbol class
// instances a Get-Instance-Attribute-List enumerates and through direct
// symbolic-path Read/Write Tag [Fragmented] addressing. Each tag also owns
// a plain numbered instance under the Symbol class so it is addressable
// both ways.
type TagNamespace struct {
	mu    sync.RWMutex
	byIns map[int]string
	names map[string]*Tag
	class *cip.Class
	next  int
}

// Tag is one named data point: a CIP type/count pair backing a single
// cip.Attribute, plus the class/instance pair it is filed under so
// TagResolver can hand it straight to the dispatcher.
type Tag struct {
	Name     string
	Type     cip.Type
	Count    int
	Template *cip.Template // non-nil for a UDT-typed tag
	Instance int
	attr     *cip.Attribute
}

// NewTagNamespace builds an empty namespace with its backing Symbol class
// (0x6B) registered into reg.
func NewTagNamespace(reg *cip.Registry) *TagNamespace {
	c := cip.NewClass(cip.ClassSymbol, "Symbol")
	reg.Register(c)
	return &TagNamespace{
		byIns: make(map[int]string),
		names: make(map[string]*Tag),
		class: c,
		next:  1,
	}
}

// Declare creates a scalar or array tag of an elementary CIP type.
func (tn *TagNamespace) Declare(name string, t cip.Type, count int) *Tag {
	tn.mu.Lock()
	defer tn.mu.Unlock()

	attr := cip.NewAttribute(1, name, t, count)
	attr.Writable = true
	tg := &Tag{Name: name, Type: t, Count: count, Instance: tn.next, attr: attr}
	tn.install(tg)
	return tg
}

// DeclareUDT creates a tag whose backing store is one instance of a
// previously defined structure template.
func (tn *TagNamespace) DeclareUDT(name string, tpl *cip.Template) *Tag {
	tn.mu.Lock()
	defer tn.mu.Unlock()

	attr := cip.NewRawAttribute(1, name, tpl.EncodeZero())
	attr.Writable = true
	tg := &Tag{Name: name, Template: tpl, Instance: tn.next, attr: attr}
	tn.install(tg)
	return tg
}

func (tn *TagNamespace) install(tg *Tag) {
	in := cip.NewInstance(tg.Instance)
	in.SetAttribute(tg.attr)
	in.SetAttribute(cip.NewRawAttribute(2, "SymbolType", symbolType(tg)))
	tn.class.SetInstance(tg.Instance, in)
	tn.names[tg.Name] = tg
	tn.byIns[tg.Instance] = tg.Name
	tn.next++
}

func symbolType(tg *Tag) []byte {
	if tg.Template != nil {
		v := uint16(tg.Template.Handle) | uint16(cip.TypeStruct)
		b, _ := cip.EncodeFixed(cip.TypeUINT, v)
		return b
	}
	v := uint16(tg.Type)
	if tg.Count > 1 {
		v |= uint16(cip.TypeArray1D)
	}
	b, _ := cip.EncodeFixed(cip.TypeUINT, v)
	return b
}

// Value decodes the tag's current backing bytes into typed Go values,
// for callers (the web introspection surface, diagnostics) that want a
// tag's contents without a CIP round trip. UDT-backed tags decode as raw
// bytes since a generic member-aware decode belongs to cip.Template, not
// here.
func (tg *Tag) Value() ([]any, error) {
	raw := tg.attr.Bytes()
	if tg.Template != nil {
		return []any{raw}, nil
	}
	return cip.TypedData(tg.Type, tg.Count, automata.NewByteSource(raw))
}

// Resolve satisfies cip.Dispatcher.TagResolver: it maps a symbolic name to
// the (class, instance) pair the dispatcher then reads/writes through the
// ordinary attribute path.
func (tn *TagNamespace) Resolve(name string) (class, instance int, ok bool) {
	tn.mu.RLock()
	defer tn.mu.RUnlock()
	tg, ok := tn.names[name]
	if !ok {
		return 0, 0, false
	}
	return cip.ClassSymbol, tg.Instance, true
}

// Lookup returns the Tag by name, for callers (e.g. the poller) that need
// its type/count metadata directly instead of routing through Resolve.
func (tn *TagNamespace) Lookup(name string) (*Tag, bool) {
	tn.mu.RLock()
	defer tn.mu.RUnlock()
	tg, ok := tn.names[name]
	return tg, ok
}

// Names lists every declared tag name, ascending — backs the web
// introspection surface's tag listing.
func (tn *TagNamespace) Names() []string {
	tn.mu.RLock()
	defer tn.mu.RUnlock()
	out := make([]string, 0, len(tn.names))
	for n := range tn.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NameByInstance is the inverse of Resolve: given a Symbol class instance
// number, it returns the tag name filed under it, for callers (the
// historian tap) that only have the dispatcher's resolved triple.
func (tn *TagNamespace) NameByInstance(instance int) (string, bool) {
	tn.mu.RLock()
	defer tn.mu.RUnlock()
	name, ok := tn.byIns[instance]
	return name, ok
}

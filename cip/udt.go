package cip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
	"sync"
)

// ClassTemplate is the standard CIP class carrying structure-template
// instances (§4 supplemental: user-defined structures).
const ClassTemplate = 0x6C

// Member describes one field of a user-defined structure, in declaration
// order. Offset is computed automatically (0) unless the caller pins a
// specific byte offset, matching the teacher's udt.go convention.
type Member struct {
	Name   string
	Type   Type
	Count  int // 0 or 1 means scalar
	Offset int // explicit offset, or 0 to pack sequentially
	Nested *Template
}

// Template is a registered user-defined structure: an ordered Member list
// plus the CRC-derived StructureHandle a symbolic tag's SymbolType embeds.
type Template struct {
	Name    string
	Handle  uint16
	ByteLen int
	Members []Member

	index map[string]int
}

// TemplateRegistry assigns growing instance numbers to Templates within the
// Template class and keeps a name-indexed lookup for UDT-typed tags.
type TemplateRegistry struct {
	mu      sync.RWMutex
	byName  map[string]*Template
	byInst  map[int]*Template
	class   *Class
	nextIns int
}

// NewTemplateRegistry wires a fresh Template class into reg and returns the
// registry that manages it.
func NewTemplateRegistry(reg *Registry) *TemplateRegistry {
	c := NewClass(ClassTemplate, "Template")
	reg.Register(c)
	return &TemplateRegistry{
		byName:  make(map[string]*Template),
		byInst:  make(map[int]*Template),
		class:   c,
		nextIns: 1,
	}
}

// Define registers a new template from an ordered member list, computing
// packed offsets for any Member left at Offset==0 and installing the
// CIP-wire template-instance attributes (StructureHandle, member table,
// name strings) the way GetAttributeAll on a Template instance serves them.
func (tr *TemplateRegistry) Define(name string, members []Member) (*Template, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, exists := tr.byName[name]; exists {
		return nil, fmt.Errorf("cip: %w: template %q already defined", ErrConfig, name)
	}

	t := &Template{Name: name, Members: append([]Member(nil), members...), index: make(map[string]int)}
	offset := 0
	var sig bytes.Buffer
	sig.WriteString(name)
	sig.WriteByte(',')
	for i := range t.Members {
		m := &t.Members[i]
		if m.Count == 0 {
			m.Count = 1
		}
		if m.Offset == 0 {
			m.Offset = offset
		}
		offset = m.Offset + memberLen(m)*m.Count
		t.index[m.Name] = i
		sig.WriteString(memberSig(m))
		if i < len(t.Members)-1 {
			sig.WriteByte(',')
		}
	}
	t.ByteLen = offset
	t.Handle = uint16(crc32.ChecksumIEEE(sig.Bytes()))

	inst := NewInstance(tr.nextIns)
	tr.installAttributes(inst, t)
	tr.class.SetInstance(tr.nextIns, inst)

	tr.byName[name] = t
	tr.byInst[tr.nextIns] = t
	tr.nextIns++
	return t, nil
}

func memberLen(m *Member) int {
	if m.Nested != nil {
		return m.Nested.ByteLen
	}
	n := FixedLen(m.Type)
	if n == 0 {
		n = 1
	}
	return n
}

func memberSig(m *Member) string {
	if m.Nested != nil {
		return m.Nested.Name
	}
	return Name(m.Type)
}

// installAttributes serializes the CIP template-object wire form (CIP Vol1
// §5.20): per-member (count, type-word, offset) triples, followed by
// null-terminated name strings, matching the byte layout the teacher's
// addUDT builds.
func (tr *TemplateRegistry) installAttributes(inst *Instance, t *Template) {
	var body bytes.Buffer
	for _, m := range t.Members {
		binary.Write(&body, binary.LittleEndian, uint16(m.Count))
		typeWord := uint16(m.Type)
		if m.Nested != nil {
			typeWord = m.Nested.Handle | uint16(TypeStruct)
		} else if m.Count > 1 {
			typeWord |= uint16(TypeArray1D)
		}
		binary.Write(&body, binary.LittleEndian, typeWord)
		binary.Write(&body, binary.LittleEndian, uint32(m.Offset))
	}
	body.WriteString(t.Name + ";n\x00")
	for _, m := range t.Members {
		body.WriteString(m.Name + "\x00")
	}
	if pad := (4 - body.Len()%4) % 4; pad != 0 {
		body.Write(make([]byte, pad))
	}

	inst.SetAttribute(fixedUint16(1, "StructureHandle", t.Handle))
	inst.SetAttribute(fixedUint16(2, "TemplateMemberCount", uint16(len(t.Members))))
	inst.SetAttribute(fixedUint16(3, "TemplateSizeWords", uint16(t.ByteLen)))
	sizeAttr := NewAttribute(4, "TemplateObjectDefinitionSize", TypeUDINT, 1)
	b, _ := EncodeFixed(TypeUDINT, uint32((body.Len()+20)/4))
	sizeAttr.SetBytes(b)
	inst.SetAttribute(sizeAttr)
	lenAttr := NewAttribute(5, "TemplateStructureSize", TypeUDINT, 1)
	lb, _ := EncodeFixed(TypeUDINT, uint32(t.ByteLen))
	lenAttr.SetBytes(lb)
	inst.SetAttribute(lenAttr)
	inst.SetAttribute(NewRawAttribute(6, "TemplateBody", body.Bytes()))
}

// Lookup finds a previously defined template by name.
func (tr *TemplateRegistry) Lookup(name string) (*Template, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	t, ok := tr.byName[name]
	return t, ok
}

// Names lists every defined template name, ascending.
func (tr *TemplateRegistry) Names() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	out := make([]string, 0, len(tr.byName))
	for n := range tr.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// EncodeZero returns a zero-filled buffer sized for one instance of t, the
// initial backing store for a UDT-typed tag attribute.
func (t *Template) EncodeZero() []byte {
	return make([]byte, t.ByteLen)
}

// MemberOffset returns the byte offset of a named member, for read/write
// addressing of a single structure field.
func (t *Template) MemberOffset(name string) (int, *Member, bool) {
	i, ok := t.index[name]
	if !ok {
		return 0, nil, false
	}
	return t.Members[i].Offset, &t.Members[i], true
}

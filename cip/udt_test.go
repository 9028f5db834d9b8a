package cip

import (
	"testing"

	"github.com/industrialgo/cipstack/automata"
)

func TestDefineComputesPackedOffsets(t *testing.T) {
	reg := NewRegistry()
	tr := NewTemplateRegistry(reg)

	tpl, err := tr.Define("POSITION", []Member{
		{Name: "x", Type: TypeDINT},
		{Name: "y", Type: TypeDINT},
	})
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	if tpl.ByteLen != 8 {
		t.Fatalf("ByteLen = %d, want 8", tpl.ByteLen)
	}
	offX, _, ok := tpl.MemberOffset("x")
	if !ok || offX != 0 {
		t.Fatalf("offset(x) = %d,%v, want 0,true", offX, ok)
	}
	offY, _, ok := tpl.MemberOffset("y")
	if !ok || offY != 4 {
		t.Fatalf("offset(y) = %d,%v, want 4,true", offY, ok)
	}
}

func TestDefineRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry()
	tr := NewTemplateRegistry(reg)
	if _, err := tr.Define("POSITION", []Member{{Name: "x", Type: TypeDINT}}); err != nil {
		t.Fatalf("first Define: %v", err)
	}
	if _, err := tr.Define("POSITION", []Member{{Name: "x", Type: TypeDINT}}); err == nil {
		t.Fatal("expected error redefining an existing template")
	}
}

func TestDefineInstallsTemplateClassInstance(t *testing.T) {
	reg := NewRegistry()
	tr := NewTemplateRegistry(reg)
	tpl, err := tr.Define("BOOLS", []Member{
		{Name: "In", Type: TypeBOOL},
		{Name: "Out", Type: TypeBOOL},
	})
	if err != nil {
		t.Fatalf("Define: %v", err)
	}

	class, ok := reg.Class(ClassTemplate)
	if !ok {
		t.Fatal("Template class not registered")
	}
	inst, ok := class.Instance(1)
	if !ok {
		t.Fatal("first template instance missing")
	}
	handleAttr, ok := inst.Attribute(1)
	if !ok {
		t.Fatal("StructureHandle attribute missing")
	}
	got, err := DecodeFixed(TypeUINT, automata.NewByteSource(handleAttr.Bytes()))
	if err != nil {
		t.Fatalf("DecodeFixed: %v", err)
	}
	if got.(uint16) != tpl.Handle {
		t.Fatalf("StructureHandle mismatch: got %d, want %d", got, tpl.Handle)
	}
}

func TestNestedTemplateEmbedsStructureHandle(t *testing.T) {
	reg := NewRegistry()
	tr := NewTemplateRegistry(reg)
	pos, err := tr.Define("POSITION", []Member{
		{Name: "x", Type: TypeDINT},
		{Name: "y", Type: TypeDINT},
	})
	if err != nil {
		t.Fatalf("Define POSITION: %v", err)
	}
	outer, err := tr.Define("SPRITE", []Member{
		{Name: "at", Nested: pos},
		{Name: "life", Type: TypeSINT},
	})
	if err != nil {
		t.Fatalf("Define SPRITE: %v", err)
	}
	if outer.ByteLen != 8+1 {
		t.Fatalf("ByteLen = %d, want 9", outer.ByteLen)
	}
}

func TestEncodeZeroSizedToByteLen(t *testing.T) {
	reg := NewRegistry()
	tr := NewTemplateRegistry(reg)
	tpl, _ := tr.Define("PAIR", []Member{
		{Name: "a", Type: TypeUDINT},
		{Name: "b", Type: TypeUDINT},
	})
	if got := len(tpl.EncodeZero()); got != 8 {
		t.Fatalf("EncodeZero length = %d, want 8", got)
	}
}

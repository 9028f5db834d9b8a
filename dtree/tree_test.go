package dtree

import "testing"

func TestSetGetScalar(t *testing.T) {
	tr := New()
	if err := tr.Set("enip.command", uint16(0x65)); err != nil {
		t.Fatal(err)
	}
	v, ok := tr.Get("enip.command")
	if !ok || v.(uint16) != 0x65 {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestAutovivifyAndArray(t *testing.T) {
	tr := New()
	if err := tr.Set("enip.CIP.send_data.CPF.item[1].unconnected_send.request.service", uint8(0x4c)); err != nil {
		t.Fatal(err)
	}
	v, ok := tr.Get("enip.CIP.send_data.CPF.item[1].unconnected_send.request.service")
	if !ok || v.(uint8) != 0x4c {
		t.Fatalf("got %v, %v", v, ok)
	}
	if _, ok := tr.Get("enip.CIP.send_data.CPF.item[0].unconnected_send.request.service"); ok {
		t.Fatalf("expected item[0] to be unset, not the same container as item[1]")
	}
}

func TestSetDefault(t *testing.T) {
	tr := New()
	v, err := tr.SetDefault("a.b", 1)
	if err != nil || v != 1 {
		t.Fatalf("got %v, %v", v, err)
	}
	v, err = tr.SetDefault("a.b", 2)
	if err != nil || v != 1 {
		t.Fatalf("SetDefault should not overwrite: got %v", v)
	}
}

func TestChangedTracksWrites(t *testing.T) {
	tr := New()
	if tr.Changed("") {
		t.Fatal("fresh tree should report no changes")
	}
	tr.Set("x.y", 1)
	if !tr.Changed("x.y") {
		t.Fatal("expected x.y to be marked changed")
	}
	if tr.Changed("x.z") {
		t.Fatal("x.z was never written")
	}
	tr.Reset()
	if tr.Changed("x.y") {
		t.Fatal("Reset should clear the dirty set")
	}
	if v, ok := tr.Get("x.y"); !ok || v != 1 {
		t.Fatal("Reset must not discard stored values")
	}
}

func TestUpdateBulk(t *testing.T) {
	tr := New()
	err := tr.Update(map[string]any{
		"a.b": 1,
		"a.c": 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := tr.Get("a.b"); v != 1 {
		t.Fatalf("got %v", v)
	}
	if v, _ := tr.Get("a.c"); v != 2 {
		t.Fatalf("got %v", v)
	}
}

func TestJoin(t *testing.T) {
	if Join("", "x") != "x" {
		t.Fatal("empty prefix should pass through")
	}
	if Join("x", "") != "x" {
		t.Fatal("empty suffix should pass through")
	}
	if Join("a", "b") != "a.b" {
		t.Fatal("expected dotted join")
	}
}

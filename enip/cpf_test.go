package enip

import (
	"bytes"
	"testing"
)

func TestItemsRoundTrip(t *testing.T) {
	items := []Item{
		{Type: ItemNullAddress},
		{Type: ItemUnconnData, Data: []byte{0x4C, 0x02, 0x20, 0x6B}},
	}
	raw := EncodeItems(0, 1000, items)
	ifh, timeout, got, err := DecodeItems(raw)
	if err != nil {
		t.Fatalf("DecodeItems: %v", err)
	}
	if ifh != 0 || timeout != 1000 {
		t.Fatalf("header mismatch: ifh=%d timeout=%d", ifh, timeout)
	}
	if len(got) != len(items) {
		t.Fatalf("item count = %d, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i].Type != items[i].Type || !bytes.Equal(got[i].Data, items[i].Data) {
			t.Fatalf("item %d mismatch: got %+v, want %+v", i, got[i], items[i])
		}
	}
}

func TestUnconnectedDataExtractsPayload(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	items := WrapUnconnectedReply(payload)
	got, err := UnconnectedData(items)
	if err != nil {
		t.Fatalf("UnconnectedData: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %v, want %v", got, payload)
	}
}

func TestConnectedDataRoundTrip(t *testing.T) {
	items := WrapConnectedReply(0x1234, 7, []byte{0xAA, 0xBB})
	connID, seq, payload, err := ConnectedData(items)
	if err != nil {
		t.Fatalf("ConnectedData: %v", err)
	}
	if connID != 0x1234 || seq != 7 {
		t.Fatalf("connID=%#x seq=%d, want 0x1234, 7", connID, seq)
	}
	if !bytes.Equal(payload, []byte{0xAA, 0xBB}) {
		t.Fatalf("payload mismatch: %v", payload)
	}
}

func TestDecodeItemsRejectsTruncatedItem(t *testing.T) {
	raw := EncodeItems(0, 0, []Item{{Type: ItemUnconnData, Data: []byte{1, 2, 3}}})
	if _, _, _, err := DecodeItems(raw[:len(raw)-2]); err == nil {
		t.Fatal("expected error decoding a truncated CPF item")
	}
}

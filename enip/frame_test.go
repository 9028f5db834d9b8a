package enip

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Command:       CmdRegisterSession,
		Length:        4,
		SessionHandle: 0xDEADBEEF,
		Status:        StatusSuccess,
		SenderContext: 0x0102030405060708,
		Options:       0,
	}
	raw := h.Encode()
	got, err := DecodeHeader(raw)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeMessageConsumesExactFrame(t *testing.T) {
	msg := Message{
		Header: Header{Command: CmdSendRRData, SessionHandle: 1, SenderContext: 42},
		Data:   []byte{1, 2, 3, 4},
	}
	raw := msg.Encode()
	raw = append(raw, 0xFF, 0xFF) // trailing bytes of a following frame

	got, n, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if n != headerLen+4 {
		t.Fatalf("consumed %d bytes, want %d", n, headerLen+4)
	}
	if !bytes.Equal(got.Data, msg.Data) {
		t.Fatalf("data mismatch: got %v, want %v", got.Data, msg.Data)
	}
	if got.Header.SenderContext != 42 {
		t.Fatalf("SenderContext = %d, want 42", got.Header.SenderContext)
	}
}

func TestDecodeMessageTruncated(t *testing.T) {
	msg := Message{Header: Header{Command: CmdNOP}, Data: []byte{1, 2, 3, 4}}
	raw := msg.Encode()
	if _, _, err := DecodeMessage(raw[:headerLen+2]); err == nil {
		t.Fatal("expected error decoding a truncated frame")
	}
}

func TestReplyEchoesSessionAndContext(t *testing.T) {
	req := Message{Header: Header{Command: CmdSendRRData, SessionHandle: 7, SenderContext: 99}}
	reply := req.Reply(StatusSuccess, []byte{0xAA})
	if reply.Header.SessionHandle != 7 || reply.Header.SenderContext != 99 {
		t.Fatalf("reply did not echo session/context: %+v", reply.Header)
	}
	if reply.Header.Command != CmdSendRRData {
		t.Fatalf("reply command changed: %v", reply.Header.Command)
	}
}

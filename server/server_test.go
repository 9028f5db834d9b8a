package server

import (
	"net"
	"testing"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/device"
	"github.com/industrialgo/cipstack/enip"
	"github.com/rs/zerolog"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	dev := device.New(device.Config{
		Identity: device.DefaultIdentity(),
		Network:  device.NetworkConfig{IP: net.ParseIP("127.0.0.1")},
	})
	return New(dev, dev)
}

func TestSessionTableRegisterAndUnregister(t *testing.T) {
	st := NewSessionTable()
	sess := st.Register(1)
	if sess.Handle == 0 {
		t.Fatal("expected a non-zero session handle")
	}
	if !st.Valid(sess.Handle) {
		t.Fatal("expected freshly registered session to be valid")
	}
	st.Unregister(sess.Handle)
	if st.Valid(sess.Handle) {
		t.Fatal("expected session to be gone after Unregister")
	}
}

func TestHandleMessageRegisterSessionAssignsHandle(t *testing.T) {
	s := testServer(t)
	msg := enip.Message{Header: enip.Header{Command: enip.CmdRegisterSession}, Data: []byte{1, 0, 0, 0}}
	var handle uint32
	reply, unreg := s.handleMessage(zerolog.Nop(), msg, &handle)
	if unreg {
		t.Fatal("RegisterSession should not close the connection")
	}
	if reply.Header.Status != enip.StatusSuccess {
		t.Fatalf("status = %v, want success", reply.Header.Status)
	}
	if handle == 0 {
		t.Fatal("expected a session handle to be assigned")
	}
	if !s.Sessions.Valid(handle) {
		t.Fatal("expected the assigned handle to be registered")
	}
}

func TestHandleMessageRejectsUnregisteredSession(t *testing.T) {
	s := testServer(t)
	msg := enip.Message{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: 0xFF}}
	var handle uint32
	reply, _ := s.handleMessage(zerolog.Nop(), msg, &handle)
	if reply.Header.Status != enip.StatusInvalidSession {
		t.Fatalf("status = %v, want StatusInvalidSession", reply.Header.Status)
	}
}

func TestHandleRRDataDispatchesGetAttributeSingle(t *testing.T) {
	s := testServer(t)
	sess := s.Sessions.Register(1)

	// Get Attribute Single on Identity class(0x01) instance 1 attribute 1.
	path := []byte{0x20, cip.ClassIdentity, 0x24, 0x01, 0x30, 0x01}
	req := append([]byte{cip.SvcGetAttributeSingle, byte(len(path) / 2)}, path...)
	items := enip.EncodeItems(0, 0, []enip.Item{{Type: enip.ItemNullAddress}, {Type: enip.ItemUnconnData, Data: req}})
	msg := enip.Message{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: sess.Handle}, Data: items}

	var handle = sess.Handle
	reply, _ := s.handleMessage(zerolog.Nop(), msg, &handle)
	if reply.Header.Status != enip.StatusSuccess {
		t.Fatalf("status = %v, want success", reply.Header.Status)
	}
	_, _, respItems, err := enip.DecodeItems(reply.Data)
	if err != nil {
		t.Fatalf("DecodeItems: %v", err)
	}
	body, err := enip.UnconnectedData(respItems)
	if err != nil {
		t.Fatalf("UnconnectedData: %v", err)
	}
	if len(body) < 4 || body[0] != cip.ReplyService(cip.SvcGetAttributeSingle) {
		t.Fatalf("unexpected reply body: %v", body)
	}
	if cip.Status(body[2]) != cip.StatusSuccess {
		t.Fatalf("CIP status = %v, want success", body[2])
	}
}

package server

import (
	"testing"
	"time"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/enip"
	"github.com/rs/zerolog"
)

func getAttributeSingleMessage(sessionHandle uint32) enip.Message {
	path := []byte{0x20, cip.ClassIdentity, 0x24, 0x01, 0x30, 0x01}
	req := append([]byte{cip.SvcGetAttributeSingle, byte(len(path) / 2)}, path...)
	items := enip.EncodeItems(0, 0, []enip.Item{{Type: enip.ItemNullAddress}, {Type: enip.ItemUnconnData, Data: req}})
	return enip.Message{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: sessionHandle}, Data: items}
}

func TestFaultsDisabledDropsRequest(t *testing.T) {
	s := testServer(t)
	sess := s.Sessions.Register(1)
	s.Faults.SetEnabled(false)

	handle := sess.Handle
	reply, unreg := s.handleMessage(zerolog.Nop(), getAttributeSingleMessage(sess.Handle), &handle)
	if reply != nil {
		t.Fatalf("expected no reply while disabled, got %+v", reply)
	}
	if unreg {
		t.Fatal("a dropped request should not tear down the session")
	}
}

func TestFaultsInducedStatusOverridesReply(t *testing.T) {
	s := testServer(t)
	sess := s.Sessions.Register(1)
	s.Faults.SetInducedStatus(cip.StatusConnFailure)

	handle := sess.Handle
	reply, _ := s.handleMessage(zerolog.Nop(), getAttributeSingleMessage(sess.Handle), &handle)
	if reply == nil {
		t.Fatal("expected a reply")
	}
	_, _, items, err := enip.DecodeItems(reply.Data)
	if err != nil {
		t.Fatalf("DecodeItems: %v", err)
	}
	body, err := enip.UnconnectedData(items)
	if err != nil {
		t.Fatalf("UnconnectedData: %v", err)
	}
	if cip.Status(body[2]) != cip.StatusConnFailure {
		t.Fatalf("CIP status = 0x%02X, want induced 0x%02X", body[2], cip.StatusConnFailure)
	}
}

func TestFaultsForcedDelayElapses(t *testing.T) {
	s := testServer(t)
	sess := s.Sessions.Register(1)
	s.Faults.SetForcedDelay(20 * time.Millisecond)

	handle := sess.Handle
	start := time.Now()
	s.handleMessage(zerolog.Nop(), getAttributeSingleMessage(sess.Handle), &handle)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("elapsed = %v, want at least the forced delay", elapsed)
	}
}

func TestSnapshotReportsFaultState(t *testing.T) {
	s := testServer(t)
	s.Faults.SetEnabled(false)
	s.Faults.SetInducedStatus(cip.StatusPathUnknown)
	s.Faults.SetForcedDelay(5 * time.Millisecond)

	snap := s.Snapshot(time.Now())
	if snap.Enabled {
		t.Fatal("expected Enabled=false in snapshot")
	}
	if cip.Status(snap.InducedStatus) != cip.StatusPathUnknown {
		t.Fatalf("InducedStatus = 0x%02X, want 0x%02X", snap.InducedStatus, cip.StatusPathUnknown)
	}
	if snap.ForcedDelay != 5*time.Millisecond {
		t.Fatalf("ForcedDelay = %v, want 5ms", snap.ForcedDelay)
	}
}

package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/device"
	"github.com/industrialgo/cipstack/server"
)

func TestParseOperationSymbolicWrite(t *testing.T) {
	op, err := ParseOperation("Speed=(DINT)42")
	if err != nil {
		t.Fatalf("ParseOperation: %v", err)
	}
	if !op.symbolic || len(op.Path) != 1 || op.Path[0].Name != "Speed" {
		t.Fatalf("unexpected path: %+v", op.Path)
	}
	if op.Type != cip.TypeDINT || len(op.Values) != 1 || op.Values[0].(int32) != 42 {
		t.Fatalf("unexpected type/values: %v %v", op.Type, op.Values)
	}
}

func TestParseOperationSymbolicRange(t *testing.T) {
	op, err := ParseOperation("Buffer[2-4]")
	if err != nil {
		t.Fatalf("ParseOperation: %v", err)
	}
	if op.Count != 3 {
		t.Fatalf("Count = %d, want 3", op.Count)
	}
	if len(op.Path) != 2 || op.Path[1].Kind != cip.SegElement || op.Path[1].Value != 2 {
		t.Fatalf("unexpected element segment: %+v", op.Path)
	}
}

func TestParseOperationNumericRead(t *testing.T) {
	op, err := ParseOperation("@1/1/7")
	if err != nil {
		t.Fatalf("ParseOperation: %v", err)
	}
	if op.symbolic {
		t.Fatal("numeric address should not be symbolic")
	}
	if len(op.Path) != 3 || op.Path[0].Kind != cip.SegClass || op.Path[2].Kind != cip.SegAttribute {
		t.Fatalf("unexpected path: %+v", op.Path)
	}
}

func TestParseJSONOperation(t *testing.T) {
	op, err := ParseOperation(`{"class": 6, "instance": 1, "attribute": 1}`)
	if err != nil {
		t.Fatalf("ParseOperation: %v", err)
	}
	if len(op.Path) != 3 {
		t.Fatalf("Path = %+v, want 3 segments", op.Path)
	}
}

func TestAggregateRespectsBudget(t *testing.T) {
	ops := make([]*Operation, 5)
	for i := range ops {
		op, err := ParseOperation("Tag" + string(rune('A'+i)))
		if err != nil {
			t.Fatalf("ParseOperation: %v", err)
		}
		ops[i] = op
	}
	groups := aggregate(ops, 20)
	if len(groups) < 2 {
		t.Fatalf("expected aggregation to split into multiple groups under a tight budget, got %d", len(groups))
	}
	var total int
	for _, g := range groups {
		total += len(g.ops)
	}
	if total != len(ops) {
		t.Fatalf("aggregate dropped operations: got %d, want %d", total, len(ops))
	}
}

func TestAggregateDisabledOneGroupPerOp(t *testing.T) {
	ops := []*Operation{{symbolic: true, Path: nil}, {symbolic: true, Path: nil}}
	groups := aggregate(ops, 0)
	if len(groups) != 2 {
		t.Fatalf("expected one group per operation, got %d", len(groups))
	}
}

func testDevice(t *testing.T) *device.Device {
	t.Helper()
	return device.New(device.Config{
		Identity: device.DefaultIdentity(),
		Network:  device.NetworkConfig{IP: net.ParseIP("127.0.0.1")},
	})
}

// startTestServer binds an ephemeral loopback port and serves dev on it
// until ctx is canceled, returning the address to connect to.
func startTestServer(t *testing.T, ctx context.Context, dev *device.Device) string {
	t.Helper()
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := probe.Addr().String()
	probe.Close()

	srv := server.New(dev, dev)
	go srv.Serve(ctx, addr)
	time.Sleep(50 * time.Millisecond)
	return addr
}

func TestConnectorReadAttributeOverRealSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := testDevice(t)
	addr := startTestServer(t, ctx, dev)

	conn := NewConnector(addr)
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	op, err := ParseOperation("@1/1/1")
	if err != nil {
		t.Fatalf("ParseOperation: %v", err)
	}
	op.Type = cip.TypeUINT

	results := conn.Synchronous([]*Operation{op})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("read failed: %v", r.Err)
	}
	if r.Status != cip.StatusSuccess {
		t.Fatalf("status = 0x%02X, want success", byte(r.Status))
	}
	if len(r.Value) != 1 || r.Value[0].(uint16) != 1 {
		t.Fatalf("VendorID = %v, want 1", r.Value)
	}
}

func TestConnectorWriteTagRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := testDevice(t)
	dev.Tags.Declare("Speed", cip.TypeDINT, 1)
	addr := startTestServer(t, ctx, dev)

	conn := NewConnector(addr)
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	writeOp, err := ParseOperation("Speed=(DINT)7")
	if err != nil {
		t.Fatalf("ParseOperation: %v", err)
	}
	if r := conn.Synchronous([]*Operation{writeOp})[0]; r.Err != nil || r.Status != cip.StatusSuccess {
		t.Fatalf("write failed: err=%v status=0x%02X", r.Err, byte(r.Status))
	}

	readOp, err := ParseOperation("Speed")
	if err != nil {
		t.Fatalf("ParseOperation: %v", err)
	}
	readOp.Type = cip.TypeDINT
	r := conn.Synchronous([]*Operation{readOp})[0]
	if r.Err != nil || r.Status != cip.StatusSuccess {
		t.Fatalf("read failed: err=%v status=0x%02X", r.Err, byte(r.Status))
	}
	if len(r.Value) != 1 || r.Value[0].(int32) != 7 {
		t.Fatalf("Speed = %v, want 7", r.Value)
	}
}

func TestPipelineAggregatesMultipleTags(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := testDevice(t)
	dev.Tags.Declare("A", cip.TypeDINT, 1)
	dev.Tags.Declare("B", cip.TypeDINT, 1)
	addr := startTestServer(t, ctx, dev)

	conn := NewConnector(addr)
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	writeA, _ := ParseOperation("A=(DINT)1")
	writeB, _ := ParseOperation("B=(DINT)2")
	conn.Synchronous([]*Operation{writeA, writeB})

	readA, _ := ParseOperation("A")
	readA.Type = cip.TypeDINT
	readB, _ := ParseOperation("B")
	readB.Type = cip.TypeDINT

	results := conn.Pipeline(ctx, []*Operation{readA, readB}, 2, 500)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, want := range []int32{1, 2} {
		r := results[i]
		if r.Err != nil || r.Status != cip.StatusSuccess {
			t.Fatalf("result %d failed: err=%v status=0x%02X", i, r.Err, byte(r.Status))
		}
		if r.Value[0].(int32) != want {
			t.Fatalf("result %d = %v, want %d", i, r.Value, want)
		}
	}
}

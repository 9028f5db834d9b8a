package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/industrialgo/cipstack/automata"
	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/enip"
)

// Result is one operation's outcome, delivered at the same index the
// operation held in the request slice regardless of wire arrival order
// (§4.8 "Ordering guarantees").
type Result struct {
	Index  int
	Op     *Operation
	Status cip.Status
	Value  []any
	Err    error
}

// Transact issues one already-encoded CIP request over SendRRData and
// returns the decoded CIP reply body (service, status, and data).
func (c *Connector) Transact(unconnected []byte) ([]byte, error) {
	items := enip.EncodeItems(0, 0, []enip.Item{
		{Type: enip.ItemNullAddress},
		{Type: enip.ItemUnconnData, Data: unconnected},
	})
	msg := enip.Message{
		Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: c.Session()},
		Data:   items,
	}
	reply, err := c.roundTrip(msg)
	if err != nil {
		return nil, err
	}
	if reply.Header.Status != enip.StatusSuccess {
		return nil, fmt.Errorf("client: encapsulation status 0x%X", uint32(reply.Header.Status))
	}
	_, _, respItems, err := enip.DecodeItems(reply.Data)
	if err != nil {
		return nil, err
	}
	return enip.UnconnectedData(respItems)
}

// Synchronous runs ops one request at a time: request, await reply, next
// (§4.8 "synchronous").
func (c *Connector) Synchronous(ops []*Operation) []Result {
	out := make([]Result, len(ops))
	for i, op := range ops {
		out[i] = c.runOne(i, op)
	}
	return out
}

func (c *Connector) runOne(index int, op *Operation) Result {
	raw, err := op.encodeRequest()
	if err != nil {
		return Result{Index: index, Op: op, Err: err}
	}
	body, err := c.Transact(raw)
	if err != nil {
		return Result{Index: index, Op: op, Err: err}
	}
	return decodeResult(index, op, body)
}

func decodeResult(index int, op *Operation, body []byte) Result {
	if len(body) < 4 {
		return Result{Index: index, Op: op, Err: fmt.Errorf("client: reply shorter than CIP header")}
	}
	status := cip.Status(body[2])
	addl := int(body[3])
	dataStart := 4 + addl*2
	if dataStart > len(body) {
		return Result{Index: index, Op: op, Status: status, Err: fmt.Errorf("client: additional status overruns reply")}
	}
	data := body[dataStart:]
	if status != cip.StatusSuccess && status != cip.StatusPartialTransfer {
		return Result{Index: index, Op: op, Status: status}
	}
	if op.isWrite() {
		return Result{Index: index, Op: op, Status: status}
	}
	values, err := decodeReadReply(op, data)
	return Result{Index: index, Op: op, Status: status, Value: values, Err: err}
}

func decodeReadReply(op *Operation, data []byte) ([]any, error) {
	count := op.Count
	if count < 1 {
		count = 1
	}
	if op.symbolic {
		if len(data) < 2 {
			return nil, fmt.Errorf("client: read-tag reply missing type header")
		}
		t := cip.Type(uint16(data[0]) | uint16(data[1])<<8)
		return cip.TypedData(t, count, automata.NewByteSource(data[2:]))
	}
	if op.Type == 0 {
		return []any{append([]byte(nil), data...)}, nil
	}
	return cip.TypedData(op.Type, count, automata.NewByteSource(data))
}

// group is a batch of operations sent as a single wire request: either one
// operation alone, or several aggregated into a Multiple Service Packet.
type group struct {
	indices []int
	ops     []*Operation
}

// aggregate packs contiguous operations into groups no larger than budget
// encoded bytes (§4.8 "A multiple byte budget > 0 triggers aggregation").
// budget<=0 disables aggregation: every operation gets its own group.
func aggregate(ops []*Operation, budget int) []group {
	if budget <= 0 {
		groups := make([]group, len(ops))
		for i, op := range ops {
			groups[i] = group{indices: []int{i}, ops: []*Operation{op}}
		}
		return groups
	}

	var groups []group
	var cur group
	curSize := 0
	flush := func() {
		if len(cur.ops) > 0 {
			groups = append(groups, cur)
			cur = group{}
			curSize = 0
		}
	}
	for i, op := range ops {
		raw, err := op.encodeRequest()
		if err != nil {
			flush()
			groups = append(groups, group{indices: []int{i}, ops: []*Operation{op}})
			continue
		}
		if len(cur.ops) > 0 && curSize+len(raw) > budget {
			flush()
		}
		cur.indices = append(cur.indices, i)
		cur.ops = append(cur.ops, op)
		curSize += len(raw)
	}
	flush()
	return groups
}

func errorResultsFor(g group, err error) []Result {
	out := make([]Result, len(g.ops))
	for i, idx := range g.indices {
		out[i] = Result{Index: idx, Op: g.ops[i], Err: err}
	}
	return out
}

// sendGroup issues g as a single wire request: a bare request when it
// holds one operation, or a Multiple Service Packet (§4.5, disaggregated
// per §4.8) when it holds several.
func (c *Connector) sendGroup(g group) []Result {
	if len(g.ops) == 1 {
		return []Result{c.runOne(g.indices[0], g.ops[0])}
	}

	subs := make([][]byte, len(g.ops))
	for i, op := range g.ops {
		raw, err := op.encodeRequest()
		if err != nil {
			return errorResultsFor(g, err)
		}
		subs[i] = raw
	}
	msPath := []cip.Segment{{Kind: cip.SegClass, Value: cip.ClassMessageRouter}, {Kind: cip.SegInstance, Value: 1}}
	raw, err := cip.EncodeRequest(&cip.Request{Service: cip.SvcMultipleService, Path: msPath, Data: buildMultipleServiceRequest(subs)})
	if err != nil {
		return errorResultsFor(g, err)
	}
	body, err := c.Transact(raw)
	if err != nil {
		return errorResultsFor(g, err)
	}
	return disaggregate(g, body)
}

// buildMultipleServiceRequest is the encoding mirror of the offset table
// cip.Dispatcher.dispatchMultiple decodes: count(2) + offsets(2*count) +
// concatenated sub-requests.
func buildMultipleServiceRequest(subs [][]byte) []byte {
	out := make([]byte, 2, 32)
	binary.LittleEndian.PutUint16(out, uint16(len(subs)))
	offsets := make([]byte, len(subs)*2)
	base := 2 + len(subs)*2
	body := make([]byte, 0, 128)
	for i, s := range subs {
		binary.LittleEndian.PutUint16(offsets[i*2:], uint16(base+len(body)))
		body = append(body, s...)
	}
	out = append(out, offsets...)
	return append(out, body...)
}

// embeddedServiceError is the CIP general status a Multiple Service Packet
// reply carries when the aggregate succeeded but one or more sub-services
// failed; individual sub-replies still parse.
const embeddedServiceError = cip.Status(0x1E)

func disaggregate(g group, body []byte) []Result {
	if len(body) < 4 {
		return errorResultsFor(g, fmt.Errorf("client: multiple service reply shorter than CIP header"))
	}
	status := cip.Status(body[2])
	addl := int(body[3])
	dataStart := 4 + addl*2
	if dataStart > len(body) || (status != cip.StatusSuccess && status != embeddedServiceError) {
		return errorResultsFor(g, fmt.Errorf("client: multiple service packet failed: status 0x%02X", byte(status)))
	}
	data := body[dataStart:]
	if len(data) < 2 {
		return errorResultsFor(g, fmt.Errorf("client: multiple service reply body truncated"))
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	if count != len(g.ops) {
		return errorResultsFor(g, fmt.Errorf("client: multiple service reply has %d sub-replies, want %d", count, len(g.ops)))
	}
	out := make([]Result, count)
	for i := 0; i < count; i++ {
		hdr := 2 + i*2
		start := int(binary.LittleEndian.Uint16(data[hdr : hdr+2]))
		end := len(data)
		if i+1 < count {
			end = int(binary.LittleEndian.Uint16(data[hdr+2 : hdr+4]))
		}
		if start < 0 || start > len(data) || end > len(data) || end < start {
			out[i] = Result{Index: g.indices[i], Op: g.ops[i], Err: fmt.Errorf("client: malformed sub-reply offset")}
			continue
		}
		out[i] = decodeResult(g.indices[i], g.ops[i], data[start:end])
	}
	return out
}

// Pipeline runs ops with up to depth requests in flight at once,
// aggregating contiguous operations into Multiple Service Packets when
// multiple sets a positive byte budget (§4.8 "Pipelining algorithm").
// Results land at their original operation index regardless of which
// group's reply arrives first.
func (c *Connector) Pipeline(ctx context.Context, ops []*Operation, depth, multiple int) []Result {
	if depth < 1 {
		depth = 1
	}
	groups := aggregate(ops, multiple)
	results := make([]Result, len(ops))
	sem := make(chan struct{}, depth)
	var wg sync.WaitGroup

	for _, g := range groups {
		select {
		case <-ctx.Done():
			for _, idx := range g.indices {
				results[idx] = Result{Index: idx, Err: ctx.Err()}
			}
			continue
		default:
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(g group) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, r := range c.sendGroup(g) {
				results[r.Index] = r
			}
		}(g)
	}
	wg.Wait()
	return results
}

// Operate is the top-level orchestrator named in §4.8: synchronous for the
// simple depth<=1/no-aggregation case, pipelined otherwise.
func (c *Connector) Operate(ctx context.Context, ops []*Operation, depth, multiple int, timeout time.Duration) []Result {
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	if depth <= 1 && multiple <= 0 {
		return c.Synchronous(ops)
	}
	return c.Pipeline(ctx, ops, depth, multiple)
}

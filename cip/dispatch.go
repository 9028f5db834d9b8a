package cip

import (
	"encoding/binary"
	"fmt"
)

// Request is one decoded CIP service request, addressed by an EPATH.
type Request struct {
	Service byte
	Path    []Segment
	Data    []byte
}

// EncodeRequest is the serializing mirror of decodeRequest: service(1) +
// path_size_words(1) + path + service-specific data. Client-side callers
// use it to build the requests the dispatcher on the other end decodes.
func EncodeRequest(req *Request) ([]byte, error) {
	path, err := EncodePath(req.Path)
	if err != nil {
		return nil, err
	}
	if len(path)%2 != 0 {
		return nil, fmt.Errorf("cip: encoded path %d is not word-aligned", len(path))
	}
	out := make([]byte, 0, 2+len(path)+len(req.Data))
	out = append(out, req.Service, byte(len(path)/2))
	out = append(out, path...)
	out = append(out, req.Data...)
	return out, nil
}

// EncodeUnconnectedSend wraps embedded (an already-encoded CIP request) in
// the Unconnected-Send envelope decoded by dispatchUnconnectedSend:
// priority/timeout ticks, message size, the embedded request padded to an
// even length, and the route path.
func EncodeUnconnectedSend(embedded []byte, routePath []Segment) ([]byte, error) {
	route, err := EncodePath(routePath)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4, 8+len(embedded)+len(route))
	out[0], out[1] = 0x05, 0x0A // priority/tick, timeout ticks: teacher-default values
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(embedded)))
	out = append(out, embedded...)
	if len(embedded)%2 == 1 {
		out = append(out, 0)
	}
	out = append(out, byte(len(route)/2), 0)
	out = append(out, route...)
	return out, nil
}

// Response is the encoded result of dispatching a Request.
type Response struct {
	Service        byte
	Status         Status
	ExtendedStatus []uint16
	Data           []byte
}

// Encode serializes a Response into the wire form of §4.5: service, a
// reserved byte, status, additional-status word count, additional status
// words, then the service reply data.
func (r *Response) Encode() []byte {
	out := make([]byte, 4, 4+2*len(r.ExtendedStatus)+len(r.Data))
	out[0] = r.Service
	out[2] = byte(r.Status)
	out[3] = byte(len(r.ExtendedStatus))
	for _, w := range r.ExtendedStatus {
		out = append(out, byte(w), byte(w>>8))
	}
	out = append(out, r.Data...)
	return out
}

// RoutePathPolicy governs how a server without a configured Route table
// decides whether to accept a request carrying a non-empty route_path
// (§4.5 "If no Route table is configured...").
type RoutePathPolicy int

const (
	// RoutePathAny accepts any route_path (configuration value `null`).
	RoutePathAny RoutePathPolicy = iota
	// RoutePathExact accepts only a route_path matching RouteExact exactly.
	RoutePathExact
	// RoutePathNone accepts only an empty route_path (configuration `false`).
	RoutePathNone
)

// RouteEntry maps a leading route_path segment to a downstream host:port.
type RouteEntry struct {
	Port     int
	LinkLo   int
	LinkHi   int // LinkHi==LinkLo for a single link; a range otherwise
	HostPort string
}

// RouteTable is the immutable-after-configuration Route mapping of §3.
type RouteTable struct {
	entries []RouteEntry
}

// NewRouteTable builds a table from entries.
func NewRouteTable(entries []RouteEntry) *RouteTable {
	return &RouteTable{entries: append([]RouteEntry(nil), entries...)}
}

// Match returns the downstream host:port for the leading segment, if any
// configured entry covers its port/link.
func (rt *RouteTable) Match(seg Segment) (string, bool) {
	if rt == nil {
		return "", false
	}
	for _, e := range rt.entries {
		if e.Port != seg.Port {
			continue
		}
		if seg.Link >= e.LinkLo && seg.Link <= e.LinkHi {
			return e.HostPort, true
		}
	}
	return "", false
}

// Forwarder round-trips a raw Unconnected-Send or Simple CIP request to a
// downstream host:port and returns its raw reply bytes; implemented by the
// server package's client-connector plumbing so this package stays free of
// socket concerns.
type Forwarder func(hostPort string, requestPath []Segment, service byte, embedded []byte) ([]byte, error)

// Dispatcher routes and serves CIP requests against a Registry, per §4.5.
type Dispatcher struct {
	Registry      *Registry
	Route         *RouteTable
	RoutePolicy   RoutePathPolicy
	RouteExact    []Segment
	Forward       Forwarder
	FragmentLimit int // default ~500, §9 Open Question

	// TagResolver, when set, translates a leading symbolic segment into a
	// concrete (class, instance) pair for the Logix tag namespace; wired by
	// the device package.
	TagResolver func(name string) (class, instance int, ok bool)

	// Serve dispatches a single, already-resolved request; installed by the
	// device package once its object model is built, kept indirected here
	// so this package doesn't import device (which imports cip).
	Serve func(class, instance, attribute int, req *Request) *Response
}

func defaultFragmentLimit(d *Dispatcher) int {
	if d.FragmentLimit > 0 {
		return d.FragmentLimit
	}
	return 500
}

// resolveTriple turns a decoded path into a (class, instance, attribute)
// triple, following a leading symbolic segment through TagResolver when
// present.
func (d *Dispatcher) resolveTriple(segs []Segment) (class, instance, attribute int, rest []Segment, err error) {
	if len(segs) == 0 {
		return 0, 0, 0, nil, fmt.Errorf("cip: %w: empty path", ErrFrame)
	}
	if segs[0].Kind == SegSymbolic && d.TagResolver != nil {
		c, i, ok := d.TagResolver(segs[0].Name)
		if !ok {
			return 0, 0, 0, nil, &ServiceError{Status: StatusPathUnknown, Reason: "unknown tag " + segs[0].Name}
		}
		class, instance = c, i
		rest = segs[1:]
	} else {
		class, instance, attribute = Triple(segs)
		if len(segs) > 2 {
			rest = segs[2:]
		}
	}
	return class, instance, attribute, rest, nil
}

// DispatchRaw decodes and serves one CIP request/reply cycle. raw is the
// service byte through the end of the request-specific payload, exactly as
// carried by an ENIP CPF unconnected_data item; it returns the encoded
// Response bytes.
func (d *Dispatcher) DispatchRaw(raw []byte) []byte {
	req, err := decodeRequest(raw)
	if err != nil {
		return (&Response{Service: 0, Status: StatusPathSegmentError}).Encode()
	}

	class, instance, attribute, _, err := d.resolveTriple(req.Path)
	if err != nil {
		return d.errorResponse(req.Service, err)
	}

	if req.Service == SvcUnconnectedSend && class == ClassConnectionManager {
		return d.dispatchUnconnectedSend(req)
	}
	if req.Service == SvcMultipleService {
		return d.dispatchMultiple(req)
	}

	resp := d.dispatchLocal(class, instance, attribute, req)
	return resp.Encode()
}

func (d *Dispatcher) errorResponse(service byte, err error) []byte {
	var se *ServiceError
	if errAs(err, &se) {
		return (&Response{Service: ReplyService(service), Status: se.Status}).Encode()
	}
	return (&Response{Service: ReplyService(service), Status: StatusPathSegmentError}).Encode()
}

func errAs(err error, target **ServiceError) bool {
	se, ok := err.(*ServiceError)
	if ok {
		*target = se
	}
	return ok
}

// dispatchLocal serves a request against the local object model via the
// Serve hook, falling back to an unsupported-service status if none is
// installed (which only happens before device wiring completes).
func (d *Dispatcher) dispatchLocal(class, instance, attribute int, req *Request) *Response {
	if d.Serve == nil {
		return &Response{Service: ReplyService(req.Service), Status: StatusServiceNotSupp}
	}
	return d.Serve(class, instance, attribute, req)
}

// decodeRequest parses service(1) + path_size_words(1) + path(2*words) +
// remaining service-specific payload.
func decodeRequest(raw []byte) (*Request, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("cip: %w: request shorter than header", ErrFrame)
	}
	service := raw[0]
	words := int(raw[1])
	pathLen := words * 2
	if len(raw) < 2+pathLen {
		return nil, fmt.Errorf("cip: %w: path overruns request", ErrFrame)
	}
	pathRaw := raw[2 : 2+pathLen]
	segs, err := DecodePath(pathRaw)
	if err != nil {
		return nil, fmt.Errorf("cip: %w: %v", ErrFrame, err)
	}
	return &Request{Service: service, Path: segs, Data: raw[2+pathLen:]}, nil
}

// dispatchUnconnectedSend implements the §4.5 Unconnected-Send framing,
// including routing rewrite/forwarding and the local-Route-Path-policy
// fallback.
func (d *Dispatcher) dispatchUnconnectedSend(req *Request) []byte {
	body := req.Data
	if len(body) < 4 {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "truncated unconnected send"})
	}
	// priority_time_tick(1) + timeout_ticks(1) + message_request_size(2)
	msgSize := int(binary.LittleEndian.Uint16(body[2:4]))
	off := 4
	if off+msgSize > len(body) {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "embedded request overruns unconnected send"})
	}
	embedded := body[off : off+msgSize]
	off += msgSize
	if msgSize%2 == 1 {
		off++ // pad to even
	}
	if off >= len(body) {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "missing route path"})
	}
	routeWords := int(body[off])
	off += 2 // + reserved byte
	routePathLen := routeWords * 2
	if off+routePathLen > len(body) {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "route path overruns unconnected send"})
	}
	routeRaw := body[off : off+routePathLen]
	routeSegs, err := DecodePath(routeRaw)
	if err != nil {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "malformed route path"})
	}

	if d.Route != nil {
		if len(routeSegs) > 0 {
			if hostPort, ok := d.Route.Match(routeSegs[0]); ok {
				trimmed := routeSegs[1:]
				return d.forwardRoute(hostPort, trimmed, embedded)
			}
		}
		return d.errorResponse(req.Service, &ServiceError{Status: StatusConnFailure, Reason: "no matching route entry"})
	}

	if !d.acceptLocalRoutePath(routeSegs) {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusConnFailure, Reason: "route path rejected by local policy"})
	}

	innerReq, err := decodeRequest(embedded)
	if err != nil {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "malformed embedded request"})
	}
	class, instance, attribute, _, err := d.resolveTriple(innerReq.Path)
	if err != nil {
		return d.errorResponse(innerReq.Service, err)
	}
	if innerReq.Service == SvcMultipleService {
		return d.dispatchMultiple(innerReq)
	}
	return d.dispatchLocal(class, instance, attribute, innerReq).Encode()
}

// forwardRoute re-frames the request for the downstream hop: if the
// trimmed route path is empty, forward a Simple (bare service) request;
// otherwise re-wrap as a fresh Unconnected-Send carrying the remaining
// route path, per §4.5.
func (d *Dispatcher) forwardRoute(hostPort string, trimmed []Segment, embedded []byte) []byte {
	if d.Forward == nil {
		return (&Response{Status: StatusConnFailure}).Encode()
	}
	innerReq, err := decodeRequest(embedded)
	if err != nil {
		return (&Response{Status: StatusPathSegmentError}).Encode()
	}
	reply, err := d.Forward(hostPort, trimmed, innerReq.Service, embedded)
	if err != nil {
		return (&Response{Service: ReplyService(innerReq.Service), Status: StatusConnFailure}).Encode()
	}
	return reply
}

// acceptLocalRoutePath implements the no-Route-table fallback rule.
func (d *Dispatcher) acceptLocalRoutePath(routeSegs []Segment) bool {
	switch d.RoutePolicy {
	case RoutePathAny:
		return true
	case RoutePathNone:
		return len(routeSegs) == 0
	case RoutePathExact:
		return pathsEqual(routeSegs, d.RouteExact)
	default:
		return len(routeSegs) == 0
	}
}

func pathsEqual(a, b []Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Value != b[i].Value || a[i].Port != b[i].Port ||
			a[i].Link != b[i].Link || a[i].Name != b[i].Name || !a[i].LinkIP.Equal(b[i].LinkIP) {
			return false
		}
	}
	return true
}

// dispatchMultiple implements the Multiple Service Packet (§4.5): each
// sub-request is dispatched independently against the local object model;
// a sibling failure never aborts the others, and reply order/offsets
// mirror the request.
func (d *Dispatcher) dispatchMultiple(req *Request) []byte {
	data := req.Data
	if len(data) < 2 {
		return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "truncated multiple service packet"})
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		start := 2 + i*2
		if start+2 > len(data) {
			return d.errorResponse(req.Service, &ServiceError{Status: StatusPathSegmentError, Reason: "truncated offset table"})
		}
		offsets[i] = int(binary.LittleEndian.Uint16(data[start : start+2]))
	}
	replies := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := offsets[i]
		end := len(data)
		if i+1 < count {
			end = offsets[i+1]
		}
		if start < 0 || start > len(data) || end > len(data) || end < start {
			replies[i] = (&Response{Status: StatusPathSegmentError}).Encode()
			continue
		}
		sub := data[start:end]
		subReq, err := decodeRequest(sub)
		if err != nil {
			replies[i] = (&Response{Status: StatusPathSegmentError}).Encode()
			continue
		}
		class, instance, attribute, _, err := d.resolveTriple(subReq.Path)
		if err != nil {
			replies[i] = d.errorResponse(subReq.Service, err)
			continue
		}
		replies[i] = d.dispatchLocal(class, instance, attribute, subReq).Encode()
	}

	out := make([]byte, 2, 64)
	binary.LittleEndian.PutUint16(out, uint16(count))
	replyOffsets := make([]byte, count*2)
	body := make([]byte, 0, 128)
	base := 2 + count*2
	for i, r := range replies {
		binary.LittleEndian.PutUint16(replyOffsets[i*2:], uint16(base+len(body)))
		body = append(body, r...)
	}
	out = append(out, replyOffsets...)
	out = append(out, body...)
	return (&Response{Service: ReplyService(req.Service), Status: StatusSuccess, Data: out}).Encode()
}

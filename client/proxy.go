package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/enip"
)

// Parameter is one symbolic-name entry in a Proxy's dictionary: the EPATH
// to read/write it at, the element type to decode/encode, and a
// free-form units label carried through to callers (§4.8 "Proxy
// abstraction").
type Parameter struct {
	Path  []cip.Segment
	Type  cip.Type
	Units string
}

// Proxy wraps a Connector plus a symbolic parameter dictionary. It opens
// the gateway lazily on first use and populates its Identity from the
// peer's List-Identity response, mirroring the teacher's lazy-connect PLC
// wrapper (logix.Client / EipClient.Connect-on-demand) generalized to
// carry the powerflex-proxy parameter-table idiom from
// original_source/server/enip/get_attribute.py.
type Proxy struct {
	Host       string
	Parameters map[string]Parameter

	mu       sync.Mutex
	conn     *Connector
	identity enip.Identity
}

// NewProxy builds a proxy for host with the given parameter dictionary.
func NewProxy(host string, params map[string]Parameter) *Proxy {
	return &Proxy{Host: host, Parameters: params}
}

// open dials and registers a session if one isn't already established,
// then fetches the peer's identity.
func (p *Proxy) open(ctx context.Context) (*Connector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && p.conn.IsConnected() {
		return p.conn, nil
	}

	conn := NewConnector(p.Host)
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("client: proxy open: %w", err)
	}
	p.conn = conn

	if id, err := ListIdentity(ctx, p.Host, 2*time.Second); err == nil {
		p.identity = id
	}
	return conn, nil
}

// CloseGateway is the proxy's only explicit recovery contract (§4.8): call
// it after any failed read/write so the next use reopens the gateway.
func (p *Proxy) CloseGateway() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Identity returns the last List-Identity response observed, valid only
// after a successful open.
func (p *Proxy) Identity() enip.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

// Read fetches the current values of the named parameters in one
// synchronous round-trip per parameter, in declaration order.
func (p *Proxy) Read(ctx context.Context, names ...string) (map[string]any, error) {
	conn, err := p.open(ctx)
	if err != nil {
		return nil, err
	}

	ops := make([]*Operation, len(names))
	for i, name := range names {
		param, ok := p.Parameters[name]
		if !ok {
			return nil, fmt.Errorf("client: proxy: unknown parameter %q", name)
		}
		ops[i] = &Operation{Description: name, Path: param.Path, Type: param.Type, Count: 1}
	}

	results := conn.Synchronous(ops)
	out := make(map[string]any, len(names))
	for i, r := range results {
		if r.Err != nil {
			p.CloseGateway()
			return nil, fmt.Errorf("client: proxy: read %q: %w", names[i], r.Err)
		}
		if r.Status != cip.StatusSuccess {
			p.CloseGateway()
			return nil, fmt.Errorf("client: proxy: read %q: status 0x%02X", names[i], byte(r.Status))
		}
		if len(r.Value) > 0 {
			out[names[i]] = r.Value[0]
		}
	}
	return out, nil
}

// Write sets one named parameter to value.
func (p *Proxy) Write(ctx context.Context, name string, value any) error {
	conn, err := p.open(ctx)
	if err != nil {
		return err
	}
	param, ok := p.Parameters[name]
	if !ok {
		return fmt.Errorf("client: proxy: unknown parameter %q", name)
	}
	op := &Operation{Description: name, Path: param.Path, Type: param.Type, Count: 1, Values: []any{value}}

	results := conn.Synchronous([]*Operation{op})
	r := results[0]
	if r.Err != nil {
		p.CloseGateway()
		return fmt.Errorf("client: proxy: write %q: %w", name, r.Err)
	}
	if r.Status != cip.StatusSuccess {
		p.CloseGateway()
		return fmt.Errorf("client: proxy: write %q: status 0x%02X", name, byte(r.Status))
	}
	return nil
}

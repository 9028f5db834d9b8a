// Package client implements the CIP client connector (§4.8): session
// lifecycle, a pipelining request/reply engine correlated by sender
// context, tag-form and JSON operation parsing, a symbolic-name proxy, and
// a cyclic poller.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/industrialgo/cipstack/enip"
)

// Connector owns one ENIP TCP session: RegisterSession on Connect,
// UnRegisterSession on Close, and demultiplexes replies to in-flight
// requests by SenderContext. Mirrors the teacher's EipClient connection
// lifecycle (mutex-guarded conn/session, TCP keep-alive), generalized with
// a reader goroutine so more than one request can be outstanding at once
// (§4.8 "Pipelining algorithm").
type Connector struct {
	host    string
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	conn    net.Conn
	session uint32

	nextCtx uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan enip.Message
	readErr   chan error
}

// NewConnector prepares a connector for host ("ip:port"); Connect performs
// the dial and RegisterSession. Matches the teacher's default of a 5
// second I/O timeout.
func NewConnector(host string) *Connector {
	return &Connector{
		host:    host,
		timeout: 5 * time.Second,
		log:     log.With().Str("component", "client").Str("host", host).Logger(),
		pending: make(map[uint64]chan enip.Message),
		readErr: make(chan error, 1),
	}
}

// SetTimeout overrides the per-I/O timeout.
func (c *Connector) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Session returns the currently registered session handle, or 0.
func (c *Connector) Session() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// IsConnected reports whether a TCP session is currently open.
func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.session != 0
}

// Connect dials host, starts the reader goroutine, and registers a
// session.
func (c *Connector) Connect() error {
	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()

	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", c.host)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", c.host, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}

	c.mu.Lock()
	c.conn = conn
	c.session = 0
	c.mu.Unlock()

	go c.readLoop(conn)

	reply, err := c.roundTrip(enip.Message{
		Header: enip.Header{Command: enip.CmdRegisterSession},
		Data:   []byte{1, 0, 0, 0},
	})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("client: RegisterSession: %w", err)
	}
	if reply.Header.Status != enip.StatusSuccess {
		_ = conn.Close()
		return fmt.Errorf("client: RegisterSession refused: status 0x%X", uint32(reply.Header.Status))
	}

	c.mu.Lock()
	c.session = reply.Header.SessionHandle
	c.mu.Unlock()
	c.log.Debug().Uint32("session", reply.Header.SessionHandle).Msg("session registered")
	return nil
}

// Close best-effort unregisters the session and closes the socket. Safe to
// call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	conn := c.conn
	session := c.session
	c.conn = nil
	c.session = 0
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if session != 0 {
		_ = c.send(conn, enip.Message{
			Header: enip.Header{Command: enip.CmdUnRegisterSession, SessionHandle: session},
		})
	}
	return conn.Close()
}

// nextContext hands out a monotonically increasing correlation token, the
// client-side half of §4.8 "Correlation".
func (c *Connector) nextContext() uint64 {
	return atomic.AddUint64(&c.nextCtx, 1)
}

func (c *Connector) send(conn net.Conn, msg enip.Message) error {
	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	_, err := conn.Write(msg.Encode())
	return err
}

// roundTrip sends msg tagged with a fresh sender context and blocks for
// the matching reply. Used for RegisterSession/UnRegisterSession and by
// Synchronous, which issues one request at a time.
func (c *Connector) roundTrip(msg enip.Message) (enip.Message, error) {
	c.mu.Lock()
	conn := c.conn
	timeout := c.timeout
	c.mu.Unlock()
	if conn == nil {
		return enip.Message{}, fmt.Errorf("client: not connected")
	}

	ctxToken := c.nextContext()
	msg.Header.SenderContext = ctxToken
	ch := make(chan enip.Message, 1)
	c.pendingMu.Lock()
	c.pending[ctxToken] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, ctxToken)
		c.pendingMu.Unlock()
	}()

	if err := c.send(conn, msg); err != nil {
		return enip.Message{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case err := <-c.readErr:
		return enip.Message{}, err
	case <-time.After(timeout):
		return enip.Message{}, fmt.Errorf("client: timeout awaiting reply")
	}
}

// readLoop reassembles the TCP stream into frames and dispatches each to
// the pending channel matching its SenderContext, mirroring the buffered
// read strategy in server.handleConn.
func (c *Connector) readLoop(conn net.Conn) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			c.failPending(err)
			return
		}
		buf = append(buf, tmp[:n]...)
		for {
			msg, consumed, err := enip.DecodeMessage(buf)
			if err != nil {
				break // need more bytes
			}
			buf = buf[consumed:]
			c.dispatchReply(msg)
		}
	}
}

func (c *Connector) dispatchReply(msg enip.Message) {
	c.pendingMu.Lock()
	ch, ok := c.pending[msg.Header.SenderContext]
	if ok {
		delete(c.pending, msg.Header.SenderContext)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Connector) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for token, ch := range c.pending {
		close(ch)
		delete(c.pending, token)
	}
	select {
	case c.readErr <- err:
	default:
	}
}

// ListIdentity sends a single UDP List Identity probe to host and decodes
// the resulting identity payload (§4 supplemental "List-Identity broadcast
// discovery").
func ListIdentity(ctx context.Context, host string, timeout time.Duration) (enip.Identity, error) {
	conn, err := net.Dial("udp4", host)
	if err != nil {
		return enip.Identity{}, err
	}
	defer conn.Close()

	msg := enip.Message{Header: enip.Header{Command: enip.CmdListIdentity}}
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(msg.Encode()); err != nil {
		return enip.Identity{}, err
	}

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return enip.Identity{}, err
	}
	reply, _, err := enip.DecodeMessage(buf[:n])
	if err != nil {
		return enip.Identity{}, err
	}
	_, _, items, err := enip.DecodeItems(reply.Data)
	if err != nil {
		return enip.Identity{}, err
	}
	for _, it := range items {
		if it.Type == enip.ItemListIdentity {
			return enip.DecodeIdentity(it.Data)
		}
	}
	return enip.Identity{}, fmt.Errorf("client: no identity item in List Identity reply")
}

// Discover broadcasts a List Identity probe to bcast ("255.255.255.255:44818"
// or a subnet broadcast address) and collects replies until timeout
// elapses, the UDP broadcast fan-out named in the supplemental feature
// list alongside ListIdentity.
func Discover(ctx context.Context, bcast string, timeout time.Duration) ([]enip.Identity, error) {
	addr, err := net.ResolveUDPAddr("udp4", bcast)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	msg := enip.Message{Header: enip.Header{Command: enip.CmdListIdentity}}
	if _, err := conn.WriteToUDP(msg.Encode(), addr); err != nil {
		return nil, err
	}

	var found []enip.Identity
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1024)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		_ = conn.SetReadDeadline(deadline)
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		reply, _, err := enip.DecodeMessage(buf[:n])
		if err != nil {
			continue
		}
		_, _, items, err := enip.DecodeItems(reply.Data)
		if err != nil {
			continue
		}
		for _, it := range items {
			if it.Type == enip.ItemListIdentity {
				if id, err := enip.DecodeIdentity(it.Data); err == nil {
					found = append(found, id)
				}
			}
		}
		select {
		case <-ctx.Done():
			return found, nil
		default:
		}
	}
	return found, nil
}

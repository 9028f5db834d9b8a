// Package server implements the TCP and UDP explicit-messaging front ends:
// per-connection session lifecycle, request framing, and dispatch into a
// device.Device's cip.Dispatcher.
package server

import (
	"math/rand"
	"sync"
	"time"

	"github.com/industrialgo/cipstack/enip"
)

// Session is one registered TCP connection's encapsulation-layer state: a
// 32-bit handle the client echoes on every subsequent request, and the
// protocol version negotiated at Register Session (§2 "RegisterSession").
type Session struct {
	Handle          uint32
	ProtocolVersion uint16
	Registered      time.Time
}

// SessionTable tracks live sessions by handle, letting SendRRData/
// SendUnitData reject a request carrying a stale or unknown handle.
type SessionTable struct {
	mu    sync.RWMutex
	table map[uint32]*Session
	rng   *rand.Rand
}

// NewSessionTable returns an empty table with its own PRNG, avoiding
// contention on the shared math/rand global source under concurrent
// connection handling.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		table: make(map[uint32]*Session),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Register allocates a fresh non-zero handle and installs a session for it.
func (st *SessionTable) Register(protocolVersion uint16) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	var handle uint32
	for handle == 0 || st.table[handle] != nil {
		handle = st.rng.Uint32()
	}
	sess := &Session{Handle: handle, ProtocolVersion: protocolVersion, Registered: time.Now()}
	st.table[handle] = sess
	return sess
}

// Valid reports whether handle names a live session.
func (st *SessionTable) Valid(handle uint32) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.table[handle]
	return ok
}

// Unregister drops a session, e.g. on UnRegisterSession or connection close.
func (st *SessionTable) Unregister(handle uint32) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.table, handle)
}

// Count returns the number of live sessions, used by the web introspection
// snapshot.
func (st *SessionTable) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.table)
}

// registerSession handles a RegisterSession command: it validates the
// requested protocol version and, on success, allocates a session handle
// (§2 "RegisterSession").
func registerSession(st *SessionTable, msg enip.Message) enip.Message {
	if len(msg.Data) < 4 {
		return msg.Reply(enip.StatusIncorrectData, nil)
	}
	version := uint16(msg.Data[0]) | uint16(msg.Data[1])<<8
	if version > 1 {
		reply := msg.Reply(enip.StatusInvalidProtocol, []byte{1, 0, 0, 0})
		return reply
	}
	sess := st.Register(version)
	reply := msg.Reply(enip.StatusSuccess, []byte{byte(version), byte(version >> 8), 0, 0})
	reply.Header.SessionHandle = sess.Handle
	return reply
}

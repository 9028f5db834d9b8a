package server

import (
	"sync"
	"time"

	"github.com/industrialgo/cipstack/cip"
)

// Faults holds the server's administrative state named by §4.7: an
// enable/disable switch, an induced CIP error status, and a forced
// per-request delay, all mutable at runtime through the web introspection
// surface's mutating endpoints. Each setting is a single server-wide value
// that applies to every connection and every tag alike; there is no
// per-connection or per-tag setting. The server-wide switch covers §8
// scenario 5 (disable, observe client timeout, re-enable, retry).
type Faults struct {
	mu            sync.RWMutex
	enabled       bool
	inducedStatus cip.Status
	forcedDelay   time.Duration
}

// NewFaults returns a Faults value with the server enabled and no induced
// error or delay, the default operating state.
func NewFaults() *Faults {
	return &Faults{enabled: true}
}

// Enabled reports whether the server is currently accepting requests. When
// false, SendRRData/SendUnitData requests receive no reply at all — the
// client observes this as a timeout, per §8 scenario 5, not as a CIP
// service error.
func (f *Faults) Enabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled
}

// SetEnabled toggles request handling on or off.
func (f *Faults) SetEnabled(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = v
}

// InducedStatus returns the CIP status every dispatched reply is
// overwritten with, or cip.StatusSuccess (0) when no error is being
// simulated.
func (f *Faults) InducedStatus() cip.Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inducedStatus
}

// SetInducedStatus configures the status every reply is overwritten with.
// Pass cip.StatusSuccess to stop inducing errors.
func (f *Faults) SetInducedStatus(status cip.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inducedStatus = status
}

// ForcedDelay returns the artificial latency applied before every reply.
func (f *Faults) ForcedDelay() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.forcedDelay
}

// SetForcedDelay configures the artificial per-request latency.
func (f *Faults) SetForcedDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forcedDelay = d
}

// applyInducedStatus overwrites the status byte of an already-encoded CIP
// reply (offset 2, per Response.Encode's layout), leaving frame errors
// (too short to carry a status byte) untouched.
func applyInducedStatus(reply []byte, status cip.Status) []byte {
	if status == cip.StatusSuccess || len(reply) < 3 {
		return reply
	}
	reply[2] = byte(status)
	reply[3] = 0 // drop any extended-status words; they'd no longer describe this status
	return reply[:4]
}

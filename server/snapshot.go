package server

import "time"

// Snapshot is a structured, JSON-friendly view of server state for the web
// introspection surface (§4.7): active session count, the tag names
// currently declared, and the administrative fault-injection state
// (enable/disable, induced error, forced delay), refreshed on demand
// rather than pushed.
type Snapshot struct {
	Sessions      int           `json:"sessions"`
	Tags          []string      `json:"tags"`
	Enabled       bool          `json:"enabled"`
	InducedStatus uint8         `json:"induced_status"`
	ForcedDelay   time.Duration `json:"forced_delay_ns"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Snapshot captures the server's current session count, tag listing, and
// fault-injection state. Timestamp is left to the caller to stamp, since
// this package's tests run without a wall clock dependency.
func (s *Server) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Sessions:      s.Sessions.Count(),
		Tags:          s.Device.Tags.Names(),
		Enabled:       s.Faults.Enabled(),
		InducedStatus: uint8(s.Faults.InducedStatus()),
		ForcedDelay:   s.Faults.ForcedDelay(),
		Timestamp:     now,
	}
}

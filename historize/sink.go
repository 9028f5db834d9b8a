// Package historize attaches a fire-and-forget historical-data sink to
// every successful tag write, per the spec's "small historical-data
// writer" collaborator interface — only its shape was mandated; the
// concrete backends here are a supplemental enrichment grounded on
// yatesdr-warlogix's mqtt/kafka/valkey publisher packages.
package historize

import (
	"context"
	"time"
)

// Record is one tag-write event, the payload every Sink publishes.
type Record struct {
	PLC       string
	Tag       string
	Type      string
	Value     any
	Writable  bool
	Timestamp time.Time
}

// Sink is the historical-data-writer collaborator interface: something
// that durably records a Record, best-effort. A failed Publish must never
// block or fail the tag write that produced it — callers log and move on.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// FanOut publishes to every member sink, collecting (not stopping on) the
// first error, so one broker outage doesn't silence the others.
type FanOut struct {
	Sinks []Sink
}

func (f FanOut) Publish(ctx context.Context, rec Record) error {
	var first error
	for _, s := range f.Sinks {
		if err := s.Publish(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f FanOut) Close() error {
	var first error
	for _, s := range f.Sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PollConfig configures a cyclic Poller, matching the defaults and
// exponential-back-off shape of original_source/server/enip/poll.py's
// run()/loop() pair.
type PollConfig struct {
	Cycle             time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Cycle <= 0 {
		c.Cycle = time.Second
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = c.Cycle
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * c.BackoffMin
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 1.5
	}
	return c
}

// Poller drives a Proxy through repeated batch reads on a fixed cycle,
// invoking Process for each successful (parameter, value) pair and
// Failure for each cycle that errors, applying exponential back-off on
// repeated failure (§4.8 "Polling").
type Poller struct {
	Proxy   *Proxy
	Names   []string
	Config  PollConfig
	Process func(name string, value any)
	Failure func(err error)

	log zerolog.Logger
}

// NewPoller builds a poller over proxy for the named parameters.
func NewPoller(proxy *Proxy, names []string, cfg PollConfig) *Poller {
	return &Poller{
		Proxy:  proxy,
		Names:  names,
		Config: cfg.withDefaults(),
		log:    log.With().Str("component", "client.poll").Logger(),
	}
}

// Run polls on Config.Cycle until ctx is canceled. Each failed cycle backs
// off from BackoffMin towards BackoffMax by BackoffMultiplier (Proxy.Read
// has already closed the gateway, so the next attempt reopens it); a
// successful cycle resets the delay to the cycle time and the back-off to
// BackoffMin.
func (p *Poller) Run(ctx context.Context) {
	delay := p.Config.Cycle
	backoff := p.Config.BackoffMin

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		values, err := p.Proxy.Read(ctx, p.Names...)
		if err != nil {
			if p.Failure != nil {
				p.Failure(err)
			} else {
				p.log.Warn().Err(err).Msg("poll cycle failed")
			}
			delay = backoff
			backoff = nextBackoff(backoff, p.Config.BackoffMultiplier, p.Config.BackoffMax)
			continue
		}

		if p.Process != nil {
			for _, name := range p.Names {
				if v, ok := values[name]; ok {
					p.Process(name, v)
				}
			}
		}
		delay = p.Config.Cycle
		backoff = p.Config.BackoffMin
	}
}

func nextBackoff(current time.Duration, multiplier float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * multiplier)
	if next > max {
		return max
	}
	if next <= current {
		return current + time.Millisecond
	}
	return next
}

package apply

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxRecords bounds the simulation table.
	DefaultMaxRecords = 64

	// DefaultTTL is how long a passed simulation stays applicable.
	DefaultTTL = 15 * time.Minute
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPolicy sets the security policy enforced by Simulate.
func WithPolicy(p Policy) Option {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithMaxRecords bounds the number of retained simulations. The oldest
// record is evicted first. Values below 1 are ignored.
func WithMaxRecords(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxRecords = n
		}
	}
}

// WithTTL sets how long a simulation may be applied after it was created.
// Values of zero or below are ignored.
func WithTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithNow replaces the wall clock used for CreatedAt, AppliedAt and TTL
// checks.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkers sets the extraction worker count used by Simulate.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		c.workers = n
	}
}

// WithBatchIDs replaces the audit batch id generator.
func WithBatchIDs(next func() string) Option {
	return func(c *Coordinator) {
		if next != nil {
			c.batchIDs = next
		}
	}
}

// WithSequence sets the simulation id source.
func WithSequence(seq *Sequence) Option {
	return func(c *Coordinator) {
		if seq != nil {
			c.seq = seq
		}
	}
}

// newBatchID returns a time-ordered UUIDv7, falling back to a random UUID
// if the v7 generator fails.
func newBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

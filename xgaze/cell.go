package xgaze

import (
	"sync"
	"time"
)

// Cell holds the latest published gaze sample for one tracker
// instance. The ingestion loop is the only writer; host-thread queries
// read concurrently. The lock guards a plain value copy and is never
// held across I/O.
type Cell struct {
	mu         sync.Mutex
	vec        Vector
	receivedAt time.Time
	published  bool
}

// Publish stores a new sample. Receipt times never move backwards for
// a given cell, so a stale publish racing a fresh one cannot roll the
// timestamp back.
func (c *Cell) Publish(v Vector, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.published && at.Before(c.receivedAt) {
		return
	}

	c.vec = v
	c.receivedAt = at
	c.published = true
}

// Load returns the current sample if one has been published and is
// younger than maxAge at the given instant.
func (c *Cell) Load(now time.Time, maxAge time.Duration) (Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.published || now.Sub(c.receivedAt) >= maxAge {
		return Vector{}, false
	}

	return c.vec, true
}

package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
)

// ControlPlane coordinates pause and resume for a running generation. Pausing
// takes effect at the next stage boundary: in-flight model calls finish, and
// the pipeline blocks before starting the next stage until Resume or until
// the run's context ends.
type ControlPlane struct {
	paused atomic.Bool

	mu     sync.Mutex
	resume chan struct{}
}

// NewControlPlane creates an unpaused control plane.
func NewControlPlane() *ControlPlane {
	return &ControlPlane{resume: make(chan struct{})}
}

// Pause requests that the run hold at the next stage boundary. Idempotent.
func (c *ControlPlane) Pause() {
	c.paused.Store(true)
}

// Resume releases a paused run. Idempotent; resuming an unpaused run is a
// no-op.
func (c *ControlPlane) Resume() {
	if !c.paused.CompareAndSwap(true, false) {
		return
	}
	c.mu.Lock()
	close(c.resume)
	c.resume = make(chan struct{})
	c.mu.Unlock()
}

// IsPaused reports whether a pause is currently requested.
func (c *ControlPlane) IsPaused() bool {
	return c.paused.Load()
}

// WaitIfPaused blocks while the plane is paused. It returns the context's
// error if the context ends first, so a cancelled run never stays parked.
func (c *ControlPlane) WaitIfPaused(ctx context.Context) error {
	for c.paused.Load() {
		c.mu.Lock()
		ch := c.resume
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

package source

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/smazurov/recordnode/internal/media"
)

// Adapter wraps a swappable Source handle. The handle can be replaced
// mid-use (camera ↔ screen hot-swap) without recreating the adapter;
// queries made after Swap returns see the new handle.
type Adapter struct {
	mu     sync.RWMutex
	handle Source
}

// NewAdapter creates an adapter over the initial source handle.
func NewAdapter(s Source) *Adapter {
	return &Adapter{handle: s}
}

// Swap replaces the underlying handle and returns the previous one. The
// caller decides the previous handle's fate; the adapter never closes it.
func (a *Adapter) Swap(s Source) Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.handle
	a.handle = s
	return prev
}

// Get returns the current handle.
func (a *Adapter) Get() Source {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handle
}

// Kind reports the current handle's source kind.
func (a *Adapter) Kind() media.SourceKind {
	return a.Get().Kind()
}

// Ready reports whether the current handle has a decodable frame.
func (a *Adapter) Ready() bool {
	return a.Get().Ready()
}

// Dimensions returns the current handle's native pixel size.
func (a *Adapter) Dimensions() (int, int) {
	return a.Get().Dimensions()
}

// Frame returns the current handle's frame.
func (a *Adapter) Frame() (image.Image, error) {
	return a.Get().Frame()
}

// WaitReady polls until the current handle reports ready or the timeout
// elapses. Returns false on timeout or context cancellation.
func (a *Adapter) WaitReady(ctx context.Context, timeout time.Duration) bool {
	if a.Ready() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-poll.C:
			if a.Ready() {
				return true
			}
		}
	}
}

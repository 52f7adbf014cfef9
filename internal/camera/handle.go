package camera

import (
	"context"
	"sync"

	"neoflow/internal/domain"
)

// Handle is the scope of one open camera session. Close releases the
// stream unless the session was already closed and reopened since.
type Handle struct {
	m    *Manager
	gen  uint64
	once sync.Once
}

func (h *Handle) Capture() (*domain.CapturedPhoto, error) {
	return h.m.Capture()
}

func (h *Handle) SwitchFacing(ctx context.Context) error {
	return h.m.SwitchFacing(ctx)
}

func (h *Handle) Facing() domain.FacingMode {
	return h.m.Facing()
}

// Close is idempotent.
func (h *Handle) Close() {
	h.once.Do(func() { h.m.release(true, h.gen) })
}

// WithCamera opens the camera, runs fn and closes the camera on every exit
// path, including a panic in fn.
func WithCamera(ctx context.Context, m *Manager, fn func(h *Handle) error) error {
	h, err := m.Open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}

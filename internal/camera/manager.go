package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"strings"
	"sync"
	"time"

	"neoflow/internal/domain"
	"neoflow/internal/port"
)

// DefaultJPEGQuality is used when Config.JPEGQuality is unset or out of range.
const DefaultJPEGQuality = 90

// Config holds the stream request and capture settings.
type Config struct {
	FacingMode  domain.FacingMode
	Width       int
	Height      int
	JPEGQuality int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager exclusively owns one camera stream. Frame sources bound to it only
// borrow the stream.
type Manager struct {
	devices port.MediaDevices
	cfg     Config
	now     func() time.Time

	// op serializes every operation that acquires a stream.
	op sync.Mutex

	mu     sync.Mutex
	state  domain.CameraState
	facing domain.FacingMode
	stream port.MediaStream
	source port.FrameSource
	err    error
	gen    uint64
}

// NewManager creates a closed Manager.
func NewManager(devices port.MediaDevices, cfg Config, opts ...Option) *Manager {
	if cfg.FacingMode != domain.FacingUser {
		cfg.FacingMode = domain.FacingEnvironment
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	m := &Manager{
		devices: devices,
		cfg:     cfg,
		now:     time.Now,
		state:   domain.CameraClosed,
		facing:  cfg.FacingMode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) State() domain.CameraState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Facing() domain.FacingMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facing
}

// Err returns the failure that put the manager in the error state.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Open acquires a stream for the current facing mode. Opening an already
// open manager returns a new handle to the same stream.
func (m *Manager) Open(ctx context.Context) (*Handle, error) {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if m.state == domain.CameraOpen {
		h := &Handle{m: m, gen: m.gen}
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	gen, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{m: m, gen: gen}, nil
}

// SwitchFacing stops the current stream, flips the facing mode and acquires
// a new stream. A failed acquisition leaves the manager in the error state
// without falling back to the previous camera. On a closed manager only the
// preferred facing mode changes.
func (m *Manager) SwitchFacing(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	m.facing = m.facing.Opposite()
	if m.state == domain.CameraClosed {
		m.mu.Unlock()
		return nil
	}
	old, src := m.stream, m.source
	m.stream = nil
	m.state = domain.CameraOpening
	m.err = nil
	m.mu.Unlock()

	if old != nil {
		if src != nil {
			src.Attach(nil)
		}
		stopStream(old)
	}
	_, err := m.acquire(ctx)
	return err
}

// acquire requests a stream. Callers hold m.op.
func (m *Manager) acquire(ctx context.Context) (uint64, error) {
	if !m.devices.SecureContext() {
		m.mu.Lock()
		m.state = domain.CameraError
		m.err = ErrInsecureContext
		m.mu.Unlock()
		return 0, ErrInsecureContext
	}

	m.mu.Lock()
	m.state = domain.CameraOpening
	m.err = nil
	gen := m.gen
	constraints := port.MediaConstraints{FacingMode: m.facing, Width: m.cfg.Width, Height: m.cfg.Height}
	m.mu.Unlock()

	stream, err := m.devices.GetUserMedia(ctx, constraints)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if stream != nil {
			stopStream(stream)
		}
		return 0, ErrClosed
	}
	if err != nil {
		cerr := classify(err)
		m.state = domain.CameraError
		m.err = cerr
		m.mu.Unlock()
		log.Printf("camera.acquire: %s camera failed (%s): %v", constraints.FacingMode, cerr.Kind, err)
		return 0, cerr
	}
	m.stream = stream
	m.state = domain.CameraOpen
	src := m.source
	m.mu.Unlock()

	if src != nil {
		src.Attach(stream)
	}
	log.Printf("camera.acquire: opened %s camera, stream %s", constraints.FacingMode, stream.ID())
	return gen, nil
}

// Close stops the stream and returns to the closed state. It is safe to
// call at any time and any number of times; an acquisition in flight is
// discarded when it completes.
func (m *Manager) Close() {
	m.release(false, 0)
}

func (m *Manager) release(matchGen bool, gen uint64) {
	m.mu.Lock()
	if matchGen && gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	stream, src := m.stream, m.source
	m.stream = nil
	m.state = domain.CameraClosed
	m.err = nil
	m.mu.Unlock()

	if stream == nil {
		return
	}
	if src != nil {
		src.Attach(nil)
	}
	stopStream(stream)
	log.Printf("camera.Close: released stream %s", stream.ID())
}

// Bind attaches a frame source to the manager. The source receives the
// current stream, if any, and every stream acquired later. Bind(nil)
// unbinds.
func (m *Manager) Bind(src port.FrameSource) {
	m.mu.Lock()
	old, stream := m.source, m.stream
	m.source = src
	m.mu.Unlock()

	if old != nil && old != src {
		old.Attach(nil)
	}
	if src != nil && stream != nil {
		src.Attach(stream)
	}
}

// Capture samples the bound frame source into a JPEG still.
func (m *Manager) Capture() (*domain.CapturedPhoto, error) {
	m.mu.Lock()
	state, src := m.state, m.source
	m.mu.Unlock()

	if state != domain.CameraOpen {
		return nil, ErrNotOpen
	}
	if src == nil {
		return nil, ErrNoFrameSource
	}
	frame, err := src.Frame()
	if err != nil {
		return nil, fmt.Errorf("sampling frame: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: m.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	at := m.now()
	return &domain.CapturedPhoto{
		FileName:    PhotoFileName(at),
		ContentType: "image/jpeg",
		Content:     buf.Bytes(),
		CapturedAt:  at,
	}, nil
}

// PhotoFileName names a capture after its UTC timestamp, e.g.
// photo-2024-05-01T08-30-15-123Z.jpg.
func PhotoFileName(at time.Time) string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z")
	return "photo-" + strings.NewReplacer(":", "-", ".", "-").Replace(ts) + ".jpg"
}

func stopStream(s port.MediaStream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

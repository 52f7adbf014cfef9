package camera_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"neoflow/internal/port"
)

type fakeTrack struct {
	live atomic.Bool
}

func (t *fakeTrack) Kind() string { return "video" }
func (t *fakeTrack) Stop()        { t.live.Store(false) }
func (t *fakeTrack) Live() bool   { return t.live.Load() }

type fakeStream struct {
	id     string
	facing string
	track  *fakeTrack
}

func (s *fakeStream) ID() string                { return s.id }
func (s *fakeStream) Tracks() []port.MediaTrack { return []port.MediaTrack{s.track} }

func (s *fakeStream) ReadFrame() (image.Image, error) {
	if !s.track.Live() {
		return nil, errors.New("stopped")
	}
	return solid(8, 6), nil
}

// fakeDevices records every acquisition and how many streams were still
// live when it started.
type fakeDevices struct {
	mu          sync.Mutex
	insecure    bool
	failures    map[string]error
	gate        chan struct{}
	entered     chan struct{}
	streams     []*fakeStream
	constraints []port.MediaConstraints
	maxLive     int
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{failures: make(map[string]error)}
}

func (d *fakeDevices) SecureContext() bool { return !d.insecure }

func (d *fakeDevices) GetUserMedia(ctx context.Context, c port.MediaConstraints) (port.MediaStream, error) {
	d.mu.Lock()
	d.constraints = append(d.constraints, c)
	if n := d.liveLocked(); n > d.maxLive {
		d.maxLive = n
	}
	gate, entered := d.gate, d.entered
	err := d.failures[string(c.FacingMode)]
	d.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeStream{id: fmt.Sprintf("stream-%d", len(d.streams)+1), facing: string(c.FacingMode), track: &fakeTrack{}}
	s.track.live.Store(true)
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevices) liveLocked() int {
	n := 0
	for _, s := range d.streams {
		if s.track.Live() {
			n++
		}
	}
	return n
}

func (d *fakeDevices) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveLocked()
}

func (d *fakeDevices) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.constraints)
}

func (d *fakeDevices) MaxLiveAtAcquire() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLive
}

func (d *fakeDevices) Stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[i]
}

type fakeSource struct {
	mu       sync.Mutex
	attached port.MediaStream
	attaches int
}

func (s *fakeSource) Attach(stream port.MediaStream) {
	s.mu.Lock()
	s.attached = stream
	s.attaches++
	s.mu.Unlock()
}

func (s *fakeSource) Frame() (image.Image, error) {
	s.mu.Lock()
	stream := s.attached
	s.mu.Unlock()
	if stream == nil {
		return nil, errors.New("nothing attached")
	}
	return stream.ReadFrame()
}

func (s *fakeSource) Attached() port.MediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	return img
}

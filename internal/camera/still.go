package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"neoflow/internal/domain"
	"neoflow/internal/port"
)

var errStreamStopped = errors.New("stream stopped")

// StillDevices serves a fixed image file per facing mode as a camera
// stream, for hosts without camera hardware.
type StillDevices struct {
	images map[domain.FacingMode]string
}

// NewStillDevices maps each facing mode to an image path. An empty path
// means no camera faces that way.
func NewStillDevices(userImage, environmentImage string) *StillDevices {
	return &StillDevices{images: map[domain.FacingMode]string{
		domain.FacingUser:        userImage,
		domain.FacingEnvironment: environmentImage,
	}}
}

// SecureContext is always true for a local process.
func (d *StillDevices) SecureContext() bool {
	return true
}

func (d *StillDevices) GetUserMedia(ctx context.Context, c port.MediaConstraints) (port.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.images[c.FacingMode]
	if path == "" {
		return nil, &port.MediaError{Name: "NotFoundError", Message: fmt.Sprintf("no %s camera configured", c.FacingMode)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &port.MediaError{Name: "NotReadableError", Message: err.Error()}
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &port.MediaError{Name: "NotReadableError", Message: fmt.Sprintf("decoding %s: %v", path, err)}
	}
	t := &stillTrack{}
	t.live.Store(true)
	return &stillStream{id: uuid.NewString(), img: img, track: t}, nil
}

type stillTrack struct {
	live atomic.Bool
}

func (t *stillTrack) Kind() string { return "video" }
func (t *stillTrack) Stop()        { t.live.Store(false) }
func (t *stillTrack) Live() bool   { return t.live.Load() }

type stillStream struct {
	id    string
	img   image.Image
	track *stillTrack
}

func (s *stillStream) ID() string { return s.id }

func (s *stillStream) Tracks() []port.MediaTrack {
	return []port.MediaTrack{s.track}
}

func (s *stillStream) ReadFrame() (image.Image, error) {
	if !s.track.Live() {
		return nil, errStreamStopped
	}
	return s.img, nil
}

// StreamSource is a frame source that samples the attached stream
// directly. It never stops the stream.
type StreamSource struct {
	mu     sync.Mutex
	stream port.MediaStream
}

func (s *StreamSource) Attach(stream port.MediaStream) {
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
}

func (s *StreamSource) Frame() (image.Image, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return nil, ErrNotOpen
	}
	return stream.ReadFrame()
}

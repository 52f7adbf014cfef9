package port

import (
	"context"
	"image"

	"neoflow/internal/domain"
)

// MediaConstraints describes the video stream requested from the platform.
type MediaConstraints struct {
	FacingMode domain.FacingMode
	Width      int
	Height     int
}

// MediaTrack is one live track of a media stream.
type MediaTrack interface {
	Kind() string
	Stop()
	Live() bool
}

// MediaStream is a live camera stream owned by the camera manager.
type MediaStream interface {
	ID() string
	Tracks() []MediaTrack
	// ReadFrame samples the current video frame.
	ReadFrame() (image.Image, error)
}

// MediaDevices is the platform's media acquisition API.
type MediaDevices interface {
	// SecureContext reports whether acquisition is allowed (TLS or loopback).
	SecureContext() bool
	GetUserMedia(ctx context.Context, constraints MediaConstraints) (MediaStream, error)
}

// MediaError is a platform acquisition failure identified by name
// (NotAllowedError, NotFoundError, NotReadableError, ...).
type MediaError struct {
	Name    string
	Message string
}

func (e *MediaError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

// FrameSource is a display binding that borrows the camera stream. It must
// never stop the stream it is attached to.
type FrameSource interface {
	Attach(stream MediaStream)
	Frame() (image.Image, error)
}

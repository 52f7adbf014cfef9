package camera

import (
	"errors"

	"neoflow/internal/port"
)

var (
	ErrInsecureContext = errors.New("camera requires a secure context (https or localhost)")
	ErrNotOpen         = errors.New("camera is not open")
	ErrNoFrameSource   = errors.New("no frame source bound to the camera")
	ErrClosed          = errors.New("camera closed while the stream was being acquired")
)

// ErrorKind classifies an acquisition failure.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindPermissionDenied
	KindNotFound
	KindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	}
	return "generic"
}

// Error is an acquisition failure with its classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Message is the user-facing text for the failure kind.
func (e *Error) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "camera permission was denied, allow camera access and try again"
	case KindNotFound:
		return "no camera was found on this device"
	case KindBusy:
		return "the camera is in use by another application"
	}
	return "the camera could not be started"
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return e.Message() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps a platform error name to an ErrorKind. Anything that is not
// a recognised media error is generic.
func classify(err error) *Error {
	kind := KindGeneric
	var me *port.MediaError
	if errors.As(err, &me) {
		switch me.Name {
		case "NotAllowedError", "PermissionDeniedError":
			kind = KindPermissionDenied
		case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
			kind = KindNotFound
		case "NotReadableError", "TrackStartError":
			kind = KindBusy
		}
	}
	return &Error{Kind: kind, Err: err}
}

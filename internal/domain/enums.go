package domain

// DocumentStatus represents the server-side lifecycle of an uploaded document.
type DocumentStatus string

const (
	StatusPending       DocumentStatus = "pending"
	StatusUploaded      DocumentStatus = "uploaded"
	StatusProcessing    DocumentStatus = "processing"
	StatusPendingReview DocumentStatus = "pending_review"
	StatusCompleted     DocumentStatus = "completed"
	StatusFailed        DocumentStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUploaded, StatusProcessing, StatusPendingReview, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further automatic polling should happen.
// pending_review is not terminal: the document still awaits human review.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// HasResult reports whether an extraction result can be fetched.
func (s DocumentStatus) HasResult() bool {
	return s == StatusPendingReview || s == StatusCompleted
}

// ProcessingSettled reports whether server-side processing is over, successfully or not.
func (s DocumentStatus) ProcessingSettled() bool {
	return s == StatusPendingReview || s.IsTerminal()
}

// ProcessMode selects single- or merge-mode submission for a template.
type ProcessMode string

const (
	ProcessModeSingle ProcessMode = "single"
	ProcessModeMerge  ProcessMode = "merge"
)

// FacingMode selects the front ("user") or back ("environment") camera.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Opposite returns the other facing mode.
func (f FacingMode) Opposite() FacingMode {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// CameraState is the open state of a camera session.
type CameraState string

const (
	CameraClosed  CameraState = "closed"
	CameraOpening CameraState = "opening"
	CameraOpen    CameraState = "open"
	CameraError   CameraState = "error"
)

// MaxUploadSize is the default upload ceiling (20 MiB).
const MaxUploadSize int64 = 20 * 1024 * 1024

// AcceptedContentTypes is the set of MIME types accepted for upload.
var AcceptedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/tiff":      true,
	"image/bmp":       true,
}

// ExtensionContentTypes maps lower-case file extensions (without dot) to MIME types.
var ExtensionContentTypes = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
}

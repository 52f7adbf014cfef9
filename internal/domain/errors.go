package domain

import "errors"

var (
	ErrNotFound             = errors.New("resource not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrSessionExpired       = errors.New("session expired, signed out")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrEmptyFile            = errors.New("file is empty")
	ErrInvalidPDF           = errors.New("file is not a readable PDF")
	ErrDocumentIDRequired   = errors.New("document id is required")
	ErrDocumentTypeRequired = errors.New("document type is required")
	ErrReasonRequired       = errors.New("rejection reason is required")
	ErrDisplayNameRequired  = errors.New("display name is required")
	ErrResultNotReady       = errors.New("extraction result is not available for the current status")
	ErrNotMergeTemplate     = errors.New("template does not use merge mode")
	ErrMergeIncomplete      = errors.New("every merge slot must be filled before submission")
	ErrSlotOutOfRange       = errors.New("merge slot index out of range")
	ErrSlotCountMismatch    = errors.New("doc type count does not match the template's required document count")
)

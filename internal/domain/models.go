package domain

import (
	"strings"
	"time"
)

// Document mirrors a server-owned document. It is never constructed locally
// except as the filtered result of an optimistic delete.
type Document struct {
	ID               string         `json:"id"`
	Status           DocumentStatus `json:"status"`
	DocumentType     *string        `json:"document_type"`
	DisplayName      *string        `json:"display_name"`
	OriginalFileName *string        `json:"original_file_name"`
	ErrorMessage     *string        `json:"error_message"`
	FileName         string         `json:"file_name"`
	FilePath         string         `json:"file_path"`
	FileSize         *int64         `json:"file_size"`
	MimeType         *string        `json:"mime_type"`
	OCRConfidence    *float64       `json:"ocr_confidence"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ProcessedAt      *time.Time     `json:"processed_at"`
}

// Name returns the best human-readable name for the document.
func (d *Document) Name() string {
	if d.DisplayName != nil && *d.DisplayName != "" {
		return *d.DisplayName
	}
	if d.OriginalFileName != nil && *d.OriginalFileName != "" {
		return *d.OriginalFileName
	}
	return d.FileName
}

// StatusSnapshot is the GET /documents/{id}/status envelope.
type StatusSnapshot struct {
	DocumentID       string         `json:"document_id"`
	Status           DocumentStatus `json:"status"`
	DocumentType     *string        `json:"document_type"`
	DisplayName      *string        `json:"display_name"`
	OriginalFileName *string        `json:"original_file_name"`
	ErrorMessage     *string        `json:"error_message"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ProcessedAt      *time.Time     `json:"processed_at"`
}

// ExtractionResult is the GET /documents/{id}/result envelope.
type ExtractionResult struct {
	DocumentID     string         `json:"document_id"`
	DocumentType   string         `json:"document_type"`
	ExtractionData map[string]any `json:"extraction_data"`
	OCRText        string         `json:"ocr_text"`
	OCRConfidence  *float64       `json:"ocr_confidence"`
	IsValidated    bool           `json:"is_validated"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
}

// ListFilter selects a page of the document list. It is comparable so it can
// key a cached list view.
type ListFilter struct {
	Page         int
	Limit        int
	Status       DocumentStatus
	DocumentType string
}

// DocumentList is the GET /documents/ envelope.
type DocumentList struct {
	Items   []Document `json:"items"`
	Total   int        `json:"total"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
	HasMore bool       `json:"has_more"`
}

// Without returns a copy of the list with the given document removed and the
// total decremented, floored at zero. The receiver is left untouched.
func (l *DocumentList) Without(documentID string) *DocumentList {
	out := &DocumentList{
		Items:   make([]Document, 0, len(l.Items)),
		Total:   l.Total - 1,
		Page:    l.Page,
		Limit:   l.Limit,
		HasMore: l.HasMore,
	}
	for i := range l.Items {
		if l.Items[i].ID != documentID {
			out.Items = append(out.Items, l.Items[i])
		}
	}
	if out.Total < 0 {
		out.Total = 0
	}
	return out
}

// UploadFile is a file selected for upload.
type UploadFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Size returns the file size in bytes.
func (f *UploadFile) Size() int64 {
	return int64(len(f.Content))
}

// IsImage reports whether the file is an image.
func (f *UploadFile) IsImage() bool {
	return strings.HasPrefix(f.ContentType, "image/")
}

// UploadResponse is the POST /documents/upload envelope.
type UploadResponse struct {
	DocumentID string    `json:"document_id"`
	FilePath   string    `json:"file_path"`
	FileName   string    `json:"file_name"`
	FileSize   int64     `json:"file_size"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProcessResponse is the envelope of the process and process-merge calls.
// Synchronous processing may carry extraction fields inline.
type ProcessResponse struct {
	DocumentID     string         `json:"document_id"`
	Status         DocumentStatus `json:"status"`
	Message        string         `json:"message"`
	EstimatedTime  string         `json:"estimated_time,omitempty"`
	Success        *bool          `json:"success,omitempty"`
	DocumentType   string         `json:"document_type,omitempty"`
	ExtractionData map[string]any `json:"extraction_data,omitempty"`
	OCRConfidence  *float64       `json:"ocr_confidence,omitempty"`
	ProcessingTime *float64       `json:"processing_time,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// DeleteResponse is the DELETE /documents/{id} envelope.
type DeleteResponse struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

// ActionResponse is the envelope of the validate, reject and rename calls.
type ActionResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DisplayName string `json:"display_name,omitempty"`
}

// ValidateInput carries a reviewer's corrections for an extraction result.
type ValidateInput struct {
	DocumentType    string
	Data            map[string]any
	ValidationNotes string
}

// MergeFile names one uploaded file of a merge submission.
type MergeFile struct {
	FilePath string `json:"file_path"`
	DocType  string `json:"doc_type"`
}

// DownloadedFile is an original document file fetched from the server.
type DownloadedFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Template is a document type the tenant can submit.
type Template struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Code             string      `json:"code"`
	Description      string      `json:"description,omitempty"`
	ProcessMode      ProcessMode `json:"process_mode"`
	RequiredDocCount int         `json:"required_doc_count"`
}

// IsMerge reports whether the template requires a merge submission.
func (t *Template) IsMerge() bool {
	return t.ProcessMode == ProcessModeMerge
}

// MergeRule describes which doc types a merge template combines.
type MergeRule struct {
	ID             string `json:"id"`
	TemplateID     string `json:"template_id"`
	DocTypeA       string `json:"doc_type_a"`
	DocTypeB       string `json:"doc_type_b"`
	SubTemplateAID string `json:"sub_template_a_id"`
	SubTemplateBID string `json:"sub_template_b_id"`
}

// MergeFileItem is one slot of a merge submission.
type MergeFileItem struct {
	SlotID  int
	File    *UploadFile
	DocType string
	Preview []byte
}

// CapturedPhoto is a still frame encoded as JPEG.
type CapturedPhoto struct {
	FileName    string
	ContentType string
	Content     []byte
	CapturedAt  time.Time
}

// UploadFile converts the photo into an upload candidate.
func (p *CapturedPhoto) UploadFile() *UploadFile {
	return &UploadFile{FileName: p.FileName, ContentType: p.ContentType, Content: p.Content}
}

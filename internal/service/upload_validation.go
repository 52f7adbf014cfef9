package service

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"neoflow/internal/domain"
)

// pdfcpu otherwise creates a config directory under the user's home.
func init() {
	api.DisableConfigDir()
}

// UploadPolicy is the client-side gate every file passes before upload.
type UploadPolicy struct {
	MaxFileSize int64
	// CheckPDF opens PDFs and rejects those without a readable page tree.
	CheckPDF bool
}

// DefaultUploadPolicy returns the 20 MiB policy with PDF checks enabled.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{MaxFileSize: domain.MaxUploadSize, CheckPDF: true}
}

// Validate checks file against the policy and normalizes its content type.
func (p UploadPolicy) Validate(file *domain.UploadFile) error {
	if file == nil || len(file.Content) == 0 {
		return domain.ErrEmptyFile
	}
	limit := p.MaxFileSize
	if limit <= 0 {
		limit = domain.MaxUploadSize
	}
	if file.Size() > limit {
		return domain.ErrFileTooLarge
	}

	contentType := normalizeContentType(file.ContentType)
	if contentType == "" {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.FileName), "."))
		contentType = domain.ExtensionContentTypes[ext]
	}
	if !domain.AcceptedContentTypes[contentType] {
		return domain.ErrUnsupportedFileType
	}

	// Reject content whose magic bytes name a different accepted type.
	// Formats the sniffer does not know (TIFF) fall through.
	n := len(file.Content)
	if n > 512 {
		n = 512
	}
	detected := normalizeContentType(http.DetectContentType(file.Content[:n]))
	if domain.AcceptedContentTypes[detected] && canonicalType(detected) != canonicalType(contentType) {
		return domain.ErrUnsupportedFileType
	}
	file.ContentType = contentType

	if p.CheckPDF && contentType == "application/pdf" {
		pages, err := api.PageCount(bytes.NewReader(file.Content), relaxedPDFConfig())
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err)
		}
		if pages == 0 {
			return domain.ErrInvalidPDF
		}
	}
	return nil
}

func normalizeContentType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

func canonicalType(v string) string {
	if v == "image/jpg" {
		return "image/jpeg"
	}
	return v
}

func relaxedPDFConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

package service_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"neoflow/internal/domain"
	"neoflow/internal/service"
)

func TestUploadPolicy_Validate(t *testing.T) {
	policy := service.DefaultUploadPolicy()
	png := pngBytes(t)

	tests := []struct {
		name    string
		file    *domain.UploadFile
		wantErr error
	}{
		{"png", &domain.UploadFile{FileName: "a.png", ContentType: "image/png", Content: png}, nil},
		{"pdf", &domain.UploadFile{FileName: "a.pdf", ContentType: "application/pdf", Content: minimalPDF()}, nil},
		{"type from extension", &domain.UploadFile{FileName: "scan.PDF", Content: minimalPDF()}, nil},
		{"jpg alias", &domain.UploadFile{FileName: "a.jpg", ContentType: "image/jpg", Content: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}}, nil},
		{"tiff not sniffed", &domain.UploadFile{FileName: "a.tiff", ContentType: "image/tiff", Content: []byte("II*\x00rest")}, nil},
		{"nil file", nil, domain.ErrEmptyFile},
		{"empty", &domain.UploadFile{FileName: "a.pdf", ContentType: "application/pdf"}, domain.ErrEmptyFile},
		{"unsupported type", &domain.UploadFile{FileName: "a.docx", ContentType: "application/msword", Content: []byte("x")}, domain.ErrUnsupportedFileType},
		{"unknown extension", &domain.UploadFile{FileName: "a.exe", Content: []byte("MZ")}, domain.ErrUnsupportedFileType},
		{"content mismatch", &domain.UploadFile{FileName: "a.pdf", ContentType: "application/pdf", Content: png}, domain.ErrUnsupportedFileType},
		{"broken pdf", &domain.UploadFile{FileName: "a.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4\ngarbage")}, domain.ErrInvalidPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.file)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUploadPolicy_Validate_SizeCeiling(t *testing.T) {
	policy := service.DefaultUploadPolicy()

	header := pngBytes(t)
	exact := &domain.UploadFile{FileName: "big.png", ContentType: "image/png"}
	exact.Content = append(header, bytes.Repeat([]byte{0}, int(domain.MaxUploadSize)-len(header))...)
	assert.NoError(t, policy.Validate(exact))

	over := &domain.UploadFile{FileName: "big.png", ContentType: "image/png", Content: make([]byte, domain.MaxUploadSize+1)}
	assert.ErrorIs(t, policy.Validate(over), domain.ErrFileTooLarge)

	small := service.UploadPolicy{MaxFileSize: 10}
	assert.ErrorIs(t, small.Validate(pngFile(t, "a.png")), domain.ErrFileTooLarge)
}

func TestUploadPolicy_Validate_NormalizesContentType(t *testing.T) {
	f := &domain.UploadFile{FileName: "a.png", ContentType: "Image/PNG; charset=binary", Content: pngBytes(t)}

	assert.NoError(t, service.DefaultUploadPolicy().Validate(f))
	assert.Equal(t, "image/png", f.ContentType)
}

func TestUploadPolicy_Validate_PDFCheckDisabled(t *testing.T) {
	policy := service.UploadPolicy{MaxFileSize: domain.MaxUploadSize}
	f := &domain.UploadFile{FileName: "a.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4\ngarbage")}

	assert.NoError(t, policy.Validate(f))
}

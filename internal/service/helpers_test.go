package service_test

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"neoflow/internal/cache"
	"neoflow/internal/domain"
	"neoflow/internal/registry"
	"neoflow/internal/service"
	"neoflow/mocks"
)

type testEnv struct {
	api   *mocks.MockDocumentAPI
	cache *cache.Cache
	reg   *registry.Registry
	docs  service.DocumentService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	api := new(mocks.MockDocumentAPI)
	c := cache.New()
	t.Cleanup(c.Close)
	reg := registry.New()
	return &testEnv{
		api:   api,
		cache: c,
		reg:   reg,
		docs:  service.NewDocumentService(api, c, reg, service.DefaultUploadPolicy()),
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF() []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func pngFile(t *testing.T, name string) *domain.UploadFile {
	t.Helper()
	return &domain.UploadFile{FileName: name, ContentType: "image/png", Content: pngBytes(t)}
}

func strPtr(s string) *string {
	return &s
}

func docList(total int, ids ...string) *domain.DocumentList {
	l := &domain.DocumentList{Total: total, Page: 1, Limit: 20}
	for _, id := range ids {
		l.Items = append(l.Items, domain.Document{ID: id, Status: domain.StatusCompleted})
	}
	return l
}

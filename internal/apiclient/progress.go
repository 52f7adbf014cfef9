package apiclient

import (
	"bytes"
	"io"
	"math"

	"neoflow/internal/port"
)

// progressReader reports the share of body bytes consumed by the transport.
type progressReader struct {
	r     *bytes.Reader
	total int64
	read  int64
	last  int
	fn    port.ProgressFunc
}

func newProgressReader(body []byte, fn port.ProgressFunc) io.ReadCloser {
	return &progressReader{r: bytes.NewReader(body), total: int64(len(body)), last: -1, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 && p.fn != nil {
		p.read += int64(n)
		pct := int(math.Round(float64(p.read) * 100 / float64(p.total)))
		if pct != p.last {
			p.last = pct
			p.fn(pct)
		}
	}
	return n, err
}

func (p *progressReader) Close() error {
	return nil
}

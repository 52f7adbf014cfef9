// Package apiclient implements port.DocumentAPI over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"neoflow/internal/domain"
	"neoflow/internal/port"
)

// DefaultTimeout is the shared ceiling for every network call.
const DefaultTimeout = 60 * time.Second

// Config configures the HTTP boundary.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Session attaches bearer credentials and owns the refresh-and-retry
	// policy. Nil disables both.
	Session port.SessionManager
	// LogRequests enables per-request logging.
	LogRequests bool
	// Transport is the innermost RoundTripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client talks to the document API.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ port.DocumentAPI = (*Client)(nil)

// New creates a Client. The middleware chain is, outermost first: request
// logging, refresh-on-auth-failure, bearer auth.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var mws []Middleware
	if cfg.LogRequests {
		mws = append(mws, Logging())
	}
	if cfg.Session != nil {
		mws = append(mws, RefreshOnAuthFailure(cfg.Session), BearerAuth(cfg.Session))
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: Chain(base, mws...),
		},
	}
}

func (c *Client) Upload(ctx context.Context, input port.UploadInput) (*domain.UploadResponse, error) {
	if input.File == nil {
		return nil, fmt.Errorf("upload: %w", domain.ErrEmptyFile)
	}
	body, contentType, err := buildUploadBody(input.File, input.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("building upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/upload", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))
	req.Body = newProgressReader(body, input.OnProgress)
	req.GetBody = func() (io.ReadCloser, error) {
		return newProgressReader(body, input.OnProgress), nil
	}

	var out domain.UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func buildUploadBody(file *domain.UploadFile, templateID string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": file.FileName,
	}))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", err
	}
	if templateID != "" {
		if err := w.WriteField("template_id", templateID); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) Process(ctx context.Context, documentID string, sync bool) (*domain.ProcessResponse, error) {
	q := url.Values{"sync": {strconv.FormatBool(sync)}}
	var out domain.ProcessResponse
	if err := c.doJSON(ctx, http.MethodPost, documentPath(documentID, "process"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ProcessMerge(ctx context.Context, templateID string, files []domain.MergeFile) (*domain.ProcessResponse, error) {
	body := map[string]any{
		"template_id": templateID,
		"files":       files,
	}
	var out domain.ProcessResponse
	if err := c.doJSON(ctx, http.MethodPost, "/documents/process-merge", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetStatus(ctx context.Context, documentID string) (*domain.StatusSnapshot, error) {
	var out domain.StatusSnapshot
	if err := c.doJSON(ctx, http.MethodGet, documentPath(documentID, "status"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetResult(ctx context.Context, documentID string) (*domain.ExtractionResult, error) {
	var out domain.ExtractionResult
	if err := c.doJSON(ctx, http.MethodGet, documentPath(documentID, "result"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context, filter domain.ListFilter) (*domain.DocumentList, error) {
	q := url.Values{}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.DocumentType != "" {
		q.Set("document_type", filter.DocumentType)
	}
	var out domain.DocumentList
	if err := c.doJSON(ctx, http.MethodGet, "/documents/", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, documentID string) (*domain.DeleteResponse, error) {
	var out domain.DeleteResponse
	if err := c.doJSON(ctx, http.MethodDelete, documentPath(documentID, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Validate(ctx context.Context, documentID string, input domain.ValidateInput) (*domain.ActionResponse, error) {
	body := map[string]any{
		"document_type":    input.DocumentType,
		"data":             input.Data,
		"validation_notes": input.ValidationNotes,
	}
	var out domain.ActionResponse
	if err := c.doJSON(ctx, http.MethodPut, documentPath(documentID, "validate"), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reject(ctx context.Context, documentID, reason string) (*domain.ActionResponse, error) {
	var out domain.ActionResponse
	body := map[string]string{"reason": reason}
	if err := c.doJSON(ctx, http.MethodPut, documentPath(documentID, "reject"), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Rename(ctx context.Context, documentID, displayName string) (*domain.ActionResponse, error) {
	var out domain.ActionResponse
	body := map[string]string{"display_name": displayName}
	if err := c.doJSON(ctx, http.MethodPut, documentPath(documentID, "rename"), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Download(ctx context.Context, documentID string) (*domain.DownloadedFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+documentPath(documentID, "download"), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling document API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Method: req.Method, Path: req.URL.Path, Detail: errorDetail(body)}
	}

	name := "document"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return &domain.DownloadedFile{
		FileName:    name,
		ContentType: resp.Header.Get("Content-Type"),
		Content:     body,
	}, nil
}

func (c *Client) Templates(ctx context.Context) ([]domain.Template, error) {
	var out []domain.Template
	if err := c.doJSON(ctx, http.MethodGet, "/tenants/me/templates", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MergeRules(ctx context.Context) ([]domain.MergeRule, error) {
	var out []domain.MergeRule
	if err := c.doJSON(ctx, http.MethodGet, "/tenants/me/merge-rules", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func documentPath(documentID, action string) string {
	p := "/documents/" + url.PathEscape(documentID)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling document API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.URL.Path,
			Detail:     errorDetail(respBody),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshaling response: %w (raw: %s)", err, truncate(string(respBody), 200))
	}
	return nil
}

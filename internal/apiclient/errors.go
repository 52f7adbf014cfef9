package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"neoflow/internal/domain"
)

// APIError is a non-2xx response from the document API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("document API error (%s %s, status %d): %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// Unwrap maps well-known statuses to domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	}
	return nil
}

// authMarkers are fragments of server messages that indicate an expired or
// invalid credential on a 500 response. The server reports these in Chinese.
var authMarkers = []string{"token", "login", "expired", "登录", "过期"}

// IsAuthFailure reports whether a response status and detail indicate an
// expired or invalid credential.
func IsAuthFailure(statusCode int, detail string) bool {
	if statusCode == http.StatusUnauthorized {
		return true
	}
	if statusCode != http.StatusInternalServerError {
		return false
	}
	d := strings.ToLower(detail)
	for _, m := range authMarkers {
		if strings.Contains(d, m) {
			return true
		}
	}
	return false
}

// errorDetail extracts the FastAPI-style "detail" field from an error body,
// falling back to the raw body.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return truncate(strings.TrimSpace(string(body)), 500)
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	return truncate(string(envelope.Detail), 500)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

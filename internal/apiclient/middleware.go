package apiclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"neoflow/internal/domain"
	"neoflow/internal/port"
)

// Middleware wraps a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base with mws. The first middleware is the outermost.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// BearerAuth attaches the session's current access token to every request.
func BearerAuth(session port.SessionManager) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			token, err := session.AccessToken(req.Context())
			if err != nil {
				return nil, fmt.Errorf("reading access token: %w", err)
			}
			if token == "" {
				return next.RoundTrip(req)
			}
			r := req.Clone(req.Context())
			r.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(r)
		})
	}
}

// RefreshOnAuthFailure refreshes the session and replays the request when the
// response indicates an expired credential. It retries at most once per
// original request. When the refresh itself fails the session is signed out
// and domain.ErrSessionExpired is returned. A request whose context ended
// during the refresh returns the context error and keeps the session.
func RefreshOnAuthFailure(session port.SessionManager) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				return nil, err
			}
			auth, err := isAuthFailureResponse(resp)
			if err != nil || !auth {
				return resp, err
			}

			if rerr := session.Refresh(req.Context()); rerr != nil {
				_ = resp.Body.Close()
				if cerr := req.Context().Err(); cerr != nil {
					log.Printf("apiclient.RefreshOnAuthFailure: %s %s aborted during refresh: %v", req.Method, req.URL.Path, cerr)
					return nil, cerr
				}
				log.Printf("apiclient.RefreshOnAuthFailure: refresh failed for %s %s: %v", req.Method, req.URL.Path, rerr)
				if serr := session.SignOut(req.Context()); serr != nil {
					log.Printf("apiclient.RefreshOnAuthFailure: sign out failed: %v", serr)
				}
				return nil, fmt.Errorf("%w: %w", domain.ErrSessionExpired, rerr)
			}

			retry, cerr := replayable(req)
			if cerr != nil {
				log.Printf("apiclient.RefreshOnAuthFailure: cannot replay %s %s: %v", req.Method, req.URL.Path, cerr)
				return resp, nil
			}
			_ = resp.Body.Close()
			log.Printf("apiclient.RefreshOnAuthFailure: session refreshed, retrying %s %s", req.Method, req.URL.Path)
			return next.RoundTrip(retry)
		})
	}
}

var errNoReplay = errors.New("request body cannot be replayed")

func replayable(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errNoReplay
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

// isAuthFailureResponse inspects resp without consuming its body.
func isAuthFailureResponse(resp *http.Response) (bool, error) {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return true, nil
	case http.StatusInternalServerError:
	default:
		return false, nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return false, fmt.Errorf("reading error response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return IsAuthFailure(resp.StatusCode, errorDetail(body)), nil
}

// Logging tags every request with an X-Request-ID and logs method, path,
// status and latency.
func Logging() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			r := req
			requestID := req.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
				r = req.Clone(req.Context())
				r.Header.Set("X-Request-ID", requestID)
			}
			start := time.Now()
			resp, err := next.RoundTrip(r)
			latency := time.Since(start)
			if err != nil {
				log.Printf("[%s] %s %s error=%v %s", requestID, r.Method, r.URL.Path, err, latency)
				return nil, err
			}
			log.Printf("[%s] %s %s %d %s", requestID, r.Method, r.URL.Path, resp.StatusCode, latency)
			return resp, nil
		})
	}
}

package port

import "context"

// SessionManager issues and refreshes the bearer credential attached to every
// request. The document client never creates credentials itself.
type SessionManager interface {
	// AccessToken returns the current bearer token, or "" when signed out.
	AccessToken(ctx context.Context) (string, error)
	// Refresh exchanges the refresh credential for a new access token.
	Refresh(ctx context.Context) error
	// SignOut tears the session down and moves the host to a signed-out state.
	SignOut(ctx context.Context) error
}

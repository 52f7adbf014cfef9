package apiclient_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"neoflow/internal/apiclient"
)

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		detail string
		want   bool
	}{
		{"unauthorized", http.StatusUnauthorized, "", true},
		{"500 with token", http.StatusInternalServerError, "Invalid token", true},
		{"500 with login", http.StatusInternalServerError, "请重新登录", true},
		{"500 with expired", http.StatusInternalServerError, "会话已过期", true},
		{"plain 500", http.StatusInternalServerError, "database unavailable", false},
		{"403 with token", http.StatusForbidden, "token", false},
		{"404", http.StatusNotFound, "not found", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apiclient.IsAuthFailure(tt.status, tt.detail))
		})
	}
}

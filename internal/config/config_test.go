package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoflow/internal/config"
	"neoflow/internal/domain"
)

// chdirTemp runs the test in an empty directory so no stray .env is loaded.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 30*time.Second, cfg.Auth.RefreshLeeway)
	assert.Equal(t, int64(20*1024*1024), cfg.Upload.MaxFileSize())
	assert.True(t, cfg.Upload.CheckPDF)
	assert.Equal(t, domain.FacingEnvironment, cfg.Camera.FacingMode)
	assert.Equal(t, 1920, cfg.Camera.Width)
	assert.Equal(t, 1080, cfg.Camera.Height)
	assert.Equal(t, 90, cfg.Camera.JPEGQuality)
	assert.Equal(t, "archive", cfg.S3.Prefix)
	assert.Equal(t, int64(3600), cfg.S3.PresignExpiry)
	assert.False(t, cfg.Log.Debug())
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("NEOFLOW_API_BASE_URL", "https://ocr.example.com/api/v1/")
	t.Setenv("NEOFLOW_POLL_INTERVAL", "500ms")
	t.Setenv("NEOFLOW_UPLOAD_MAX_FILE_SIZE_MB", "5")
	t.Setenv("NEOFLOW_CAMERA_FACING_MODE", "user")
	t.Setenv("NEOFLOW_AUTH_ACCESS_TOKEN", "tok")
	t.Setenv("NEOFLOW_LOG_LEVEL", "DEBUG")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ocr.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxFileSize())
	assert.Equal(t, domain.FacingUser, cfg.Camera.FacingMode)
	assert.Equal(t, "tok", cfg.Auth.AccessToken)
	assert.True(t, cfg.Log.Debug())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NEOFLOW_S3_BUCKET=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NEOFLOW_S3_BUCKET") })

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.S3.Bucket)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"facing mode", "NEOFLOW_CAMERA_FACING_MODE", "sideways"},
		{"jpeg quality", "NEOFLOW_CAMERA_JPEG_QUALITY", "0"},
		{"poll interval", "NEOFLOW_POLL_INTERVAL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(tt.env, tt.val)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestUploadConfig_MaxFileSizeFallback(t *testing.T) {
	assert.Equal(t, domain.MaxUploadSize, config.UploadConfig{}.MaxFileSize())
}

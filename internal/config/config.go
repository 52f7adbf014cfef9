package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"neoflow/internal/domain"
)

// Config holds all client configuration.
type Config struct {
	API    APIConfig
	Auth   AuthConfig
	Poll   PollConfig
	Upload UploadConfig
	Camera CameraConfig
	S3     S3Config
	Log    LogConfig
}

// APIConfig holds document API settings.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds the session credential and the auth service used to
// refresh it.
type AuthConfig struct {
	AccessToken   string        `mapstructure:"access_token"`
	RefreshToken  string        `mapstructure:"refresh_token"`
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"api_key"`
	RefreshLeeway time.Duration `mapstructure:"refresh_leeway"`
}

// PollConfig holds status polling settings.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// UploadConfig holds client-side upload limits.
type UploadConfig struct {
	MaxFileSizeMB int64 `mapstructure:"max_file_size_mb"`
	CheckPDF      bool  `mapstructure:"check_pdf"`
}

// MaxFileSize returns the upload ceiling in bytes.
func (c UploadConfig) MaxFileSize() int64 {
	if c.MaxFileSizeMB <= 0 {
		return domain.MaxUploadSize
	}
	return c.MaxFileSizeMB * 1024 * 1024
}

// CameraConfig holds capture settings. UserImage and EnvironmentImage name
// the still images served per facing mode on hosts without a camera.
type CameraConfig struct {
	FacingMode       domain.FacingMode `mapstructure:"facing_mode"`
	Width            int               `mapstructure:"width"`
	Height           int               `mapstructure:"height"`
	JPEGQuality      int               `mapstructure:"jpeg_quality"`
	UserImage        string            `mapstructure:"user_image"`
	EnvironmentImage string            `mapstructure:"environment_image"`
}

// S3Config holds the archive target.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Prefix        string `mapstructure:"prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Debug reports whether request-level logging is enabled.
func (c LogConfig) Debug() bool {
	return strings.EqualFold(c.Level, "debug")
}

// Load reads configuration from environment variables with the NEOFLOW_
// prefix. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config.Load: ignoring .env: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix("NEOFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// API defaults
	v.SetDefault("api.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("api.timeout", "60s")

	// Auth defaults
	v.SetDefault("auth.access_token", "")
	v.SetDefault("auth.refresh_token", "")
	v.SetDefault("auth.url", "")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.refresh_leeway", "30s")

	// Poll defaults
	v.SetDefault("poll.interval", "2s")

	// Upload defaults
	v.SetDefault("upload.max_file_size_mb", 20)
	v.SetDefault("upload.check_pdf", true)

	// Camera defaults
	v.SetDefault("camera.facing_mode", string(domain.FacingEnvironment))
	v.SetDefault("camera.width", 1920)
	v.SetDefault("camera.height", 1080)
	v.SetDefault("camera.jpeg_quality", 90)
	v.SetDefault("camera.user_image", "")
	v.SetDefault("camera.environment_image", "")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "neoflow-archive")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "archive")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"api.base_url":             "NEOFLOW_API_BASE_URL",
		"api.timeout":              "NEOFLOW_API_TIMEOUT",
		"auth.access_token":        "NEOFLOW_AUTH_ACCESS_TOKEN",
		"auth.refresh_token":       "NEOFLOW_AUTH_REFRESH_TOKEN",
		"auth.url":                 "NEOFLOW_AUTH_URL",
		"auth.api_key":             "NEOFLOW_AUTH_API_KEY",
		"auth.refresh_leeway":      "NEOFLOW_AUTH_REFRESH_LEEWAY",
		"poll.interval":            "NEOFLOW_POLL_INTERVAL",
		"upload.max_file_size_mb":  "NEOFLOW_UPLOAD_MAX_FILE_SIZE_MB",
		"upload.check_pdf":         "NEOFLOW_UPLOAD_CHECK_PDF",
		"camera.facing_mode":       "NEOFLOW_CAMERA_FACING_MODE",
		"camera.width":             "NEOFLOW_CAMERA_WIDTH",
		"camera.height":            "NEOFLOW_CAMERA_HEIGHT",
		"camera.jpeg_quality":      "NEOFLOW_CAMERA_JPEG_QUALITY",
		"camera.user_image":        "NEOFLOW_CAMERA_USER_IMAGE",
		"camera.environment_image": "NEOFLOW_CAMERA_ENVIRONMENT_IMAGE",
		"s3.region":                "NEOFLOW_S3_REGION",
		"s3.bucket":                "NEOFLOW_S3_BUCKET",
		"s3.endpoint":              "NEOFLOW_S3_ENDPOINT",
		"s3.access_key":            "NEOFLOW_S3_ACCESS_KEY",
		"s3.secret_key":            "NEOFLOW_S3_SECRET_KEY",
		"s3.prefix":                "NEOFLOW_S3_PREFIX",
		"s3.presign_expiry":        "NEOFLOW_S3_PRESIGN_EXPIRY",
		"log.level":                "NEOFLOW_LOG_LEVEL",
		"log.format":               "NEOFLOW_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}
	cfg.API = APIConfig{
		BaseURL: strings.TrimRight(v.GetString("api.base_url"), "/"),
		Timeout: v.GetDuration("api.timeout"),
	}
	cfg.Auth = AuthConfig{
		AccessToken:   v.GetString("auth.access_token"),
		RefreshToken:  v.GetString("auth.refresh_token"),
		URL:           v.GetString("auth.url"),
		APIKey:        v.GetString("auth.api_key"),
		RefreshLeeway: v.GetDuration("auth.refresh_leeway"),
	}
	cfg.Poll = PollConfig{
		Interval: v.GetDuration("poll.interval"),
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
		CheckPDF:      v.GetBool("upload.check_pdf"),
	}
	cfg.Camera = CameraConfig{
		FacingMode:       domain.FacingMode(v.GetString("camera.facing_mode")),
		Width:            v.GetInt("camera.width"),
		Height:           v.GetInt("camera.height"),
		JPEGQuality:      v.GetInt("camera.jpeg_quality"),
		UserImage:        v.GetString("camera.user_image"),
		EnvironmentImage: v.GetString("camera.environment_image"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		Prefix:        strings.Trim(v.GetString("s3.prefix"), "/"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("config: poll.interval must be positive, got %s", c.Poll.Interval)
	}
	switch c.Camera.FacingMode {
	case domain.FacingUser, domain.FacingEnvironment:
	default:
		return fmt.Errorf("config: camera.facing_mode must be %q or %q, got %q",
			domain.FacingUser, domain.FacingEnvironment, c.Camera.FacingMode)
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("config: camera.jpeg_quality must be within 1-100, got %d", c.Camera.JPEGQuality)
	}
	return nil
}

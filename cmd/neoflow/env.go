package main

import (
	"fmt"
	"io"
	"log"
	"sync"

	"neoflow/internal/apiclient"
	"neoflow/internal/cache"
	"neoflow/internal/config"
	"neoflow/internal/port"
	"neoflow/internal/registry"
	"neoflow/internal/service"
	"neoflow/internal/session"
)

// env holds the services shared by every command of one invocation.
type env struct {
	mu     sync.Mutex
	out    io.Writer
	cfg    *config.Config
	policy service.UploadPolicy
	cache  *cache.Cache
	reg    *registry.Registry
	docs   service.DocumentService
	syncer *service.StatusSynchronizer
	merge  *service.MergeService
}

func loadEnv(out io.Writer) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var sess port.SessionManager
	if cfg.Auth.AccessToken != "" || cfg.Auth.RefreshToken != "" {
		sess = session.New(session.Config{
			AuthURL:       cfg.Auth.URL,
			APIKey:        cfg.Auth.APIKey,
			AccessToken:   cfg.Auth.AccessToken,
			RefreshToken:  cfg.Auth.RefreshToken,
			RefreshLeeway: cfg.Auth.RefreshLeeway,
			OnSignedOut: func() {
				log.Printf("neoflow: session expired, sign in again and update NEOFLOW_AUTH_ACCESS_TOKEN")
			},
		})
	}

	client := apiclient.New(apiclient.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		Session:     sess,
		LogRequests: cfg.Log.Debug(),
	})

	policy := service.UploadPolicy{MaxFileSize: cfg.Upload.MaxFileSize(), CheckPDF: cfg.Upload.CheckPDF}
	c := cache.New()
	reg := registry.New()
	return &env{
		out:    out,
		cfg:    cfg,
		policy: policy,
		cache:  c,
		reg:    reg,
		docs:   service.NewDocumentService(client, c, reg, policy),
		syncer: service.NewStatusSynchronizer(client, c, reg, cfg.Poll.Interval),
		merge:  service.NewMergeService(client, c, reg, policy),
	}, nil
}

func (e *env) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// printf is safe for concurrent use by watch goroutines.
func (e *env) printf(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.out, format, args...)
}

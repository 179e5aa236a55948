// Package main is the entry point for the cliptrayd daemon. It reads
// configuration from the environment, builds the logger, and hands off to
// the server package. All real logic lives under internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cliptray/cliptrayd/internal/cloud"
	"github.com/cliptray/cliptrayd/internal/server"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	level := slog.LevelInfo
	if os.Getenv("CLIPTRAY_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create data directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func configFromEnv() (server.Config, error) {
	cfg := server.Config{
		Port:               4875,
		DBPath:             defaultDataPath("cliptray.db"),
		HintPath:           defaultDataPath("session.json"),
		Version:            version,
		GitHubRepo:         envOr("CLIPTRAY_GITHUB_REPO", "cliptray/cliptray"),
		PaymentsBaseURL:    os.Getenv("CLIPTRAY_PAYMENTS_URL"),
		PaymentSiteURL:     envOr("CLIPTRAY_PAYMENT_SITE", "https://cliptray.app/upgrade"),
		FirebaseProjectID:  os.Getenv("CLIPTRAY_FIREBASE_PROJECT"),
		OAuthClientID:      os.Getenv("CLIPTRAY_OAUTH_CLIENT_ID"),
		OAuthClientSecret:  os.Getenv("CLIPTRAY_OAUTH_CLIENT_SECRET"),
		OAuthRedirectURL:   envOr("CLIPTRAY_OAUTH_REDIRECT", "http://127.0.0.1:4876/callback"),
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
		PurgeCheckInterval: time.Minute,
	}

	if v := os.Getenv("CLIPTRAY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, err
		}
		cfg.Port = port
	}
	if v := os.Getenv("CLIPTRAY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CLIPTRAY_HINT_PATH"); v != "" {
		cfg.HintPath = v
	}

	cfg.S3 = cloud.S3Config{
		Region:       envOr("CLIPTRAY_S3_REGION", "us-east-1"),
		Bucket:       os.Getenv("CLIPTRAY_S3_BUCKET"),
		AccessKey:    os.Getenv("CLIPTRAY_S3_ACCESS_KEY"),
		SecretKey:    os.Getenv("CLIPTRAY_S3_SECRET_KEY"),
		BaseEndpoint: os.Getenv("CLIPTRAY_S3_ENDPOINT"),
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// defaultDataPath places daemon state under the user config directory,
// falling back to a local data/ directory when it cannot be resolved.
func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("data", name)
	}
	return filepath.Join(dir, "cliptray", name)
}

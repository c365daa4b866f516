// Package main provides the sealbox binary entry point that starts the HTTP
// server for expiring encrypted file sharing.
//
// The application flow:
//  1. Load and validate configuration from the environment.
//  2. Set up structured logging.
//  3. Open the configured metadata and blob backends.
//  4. Compose the service, janitor, and HTTP layer.
//  5. Serve until interrupted, then shut down gracefully.
package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/cipher"
	"github.com/sealbox/sealbox/internal/config"
	"github.com/sealbox/sealbox/internal/httpx"
	"github.com/sealbox/sealbox/internal/janitor"
	"github.com/sealbox/sealbox/internal/metrics"
	"github.com/sealbox/sealbox/internal/store/filesystem"
	"github.com/sealbox/sealbox/internal/store/postgres"
	"github.com/sealbox/sealbox/internal/store/redis"
	s3store "github.com/sealbox/sealbox/internal/store/s3"
	"github.com/sealbox/sealbox/internal/store/sqlite"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	level := parseLogLevel(cfg.LogLevel)
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureDataDir creates the data directory tree if needed and returns the
// blob subdirectory used by the filesystem backend.
func ensureDataDir(dir string) string {
	if st, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
				slog.Error("failed to create data directory", "dir", dir, "err", mkErr)
				os.Exit(3)
			}
		} else {
			slog.Error("stat data directory", "dir", dir, "err", err)
			os.Exit(3)
		}
	} else if !st.IsDir() {
		slog.Error("data path not directory", "dir", dir)
		os.Exit(3)
	}
	blobDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(blobDir, 0o700); err != nil {
		slog.Error("create blobs dir", "err", err)
		os.Exit(3)
	}
	return blobDir
}

func newCipher(cfg *config.Config) *cipher.Cipher {
	if cfg.EncryptionKey == "" {
		slog.Error("SEALBOX_ENCRYPTION_KEY is required")
		os.Exit(2)
	}
	key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		slog.Error("decode encryption key", "err", err)
		os.Exit(2)
	}
	c, err := cipher.New(key)
	if err != nil {
		slog.Error("init cipher", "err", err)
		os.Exit(2)
	}
	return c
}

// openMetaStore selects the metadata backend. The returned close func is
// non-nil for backends that own a connection.
func openMetaStore(ctx context.Context, cfg *config.Config) (app.MetadataStore, func(context.Context) error, func() error) {
	switch cfg.MetaBackend {
	case "postgres":
		st, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Error("open postgres", "err", err)
			os.Exit(4)
		}
		return st, func(context.Context) error { return nil }, st.Close
	case "redis":
		st, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Error("open redis", "err", err)
			os.Exit(4)
		}
		return st, func(context.Context) error { return nil }, st.Close
	default: // sqlite
		db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
		if err != nil {
			slog.Error("open sqlite driver", "err", err)
			os.Exit(4)
		}
		st, err := sqlite.New(db)
		if err != nil {
			slog.Error("init sqlite schema", "err", err)
			os.Exit(4)
		}
		return st, db.PingContext, db.Close
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config, blobDir string) app.BlobStore {
	if cfg.BlobBackend == "s3" {
		blobs, err := s3store.New(ctx, s3store.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			slog.Error("init s3 blob storage", "err", err)
			os.Exit(5)
		}
		return blobs
	}
	blobs, err := filesystem.New(blobDir)
	if err != nil {
		slog.Error("init blob storage", "err", err)
		os.Exit(5)
	}
	return blobs
}

func buildService(meta app.MetadataStore, blobs app.BlobStore, c *cipher.Cipher, cfg *config.Config, clock app.Clock) *app.Service {
	return &app.Service{
		Blobs:        blobs,
		Meta:         meta,
		Cipher:       c,
		Clock:        clock,
		Logger:       slog.Default(),
		MaxBytes:     int64(cfg.MaxBytes),
		MaxTTL:       cfg.MaxTTL,
		DefaultTTL:   cfg.DefaultTTL,
		DefaultQuota: cfg.DefaultDownloads,
	}
}

func buildHandler(cfg *config.Config, svc *app.Service, m *metrics.Metrics, ping func(context.Context) error) http.Handler {
	h := httpx.New(svc, int64(cfg.MaxBytes), ping)
	h.Metrics = m
	if cfg.JWTSecret != "" {
		issuer, err := auth.New([]byte(cfg.JWTSecret), cfg.JWTTTL)
		if err != nil {
			slog.Error("init auth", "err", err)
			os.Exit(2)
		}
		h.Issuer = issuer
		h.Verifier = issuer
	}
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func run() error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCipher(cfg)
	blobDir := ensureDataDir(cfg.DataDir)

	meta, ping, closeMeta := openMetaStore(ctx, cfg)
	defer func() { _ = closeMeta() }()
	blobs := openBlobStore(ctx, cfg, blobDir)

	clock := realClock{}
	m := metrics.New()
	svc := buildService(meta, blobs, c, cfg, clock)

	j := janitor.New(meta, blobs, clock, janitor.Config{
		Interval: cfg.JanitorInterval,
		Logger:   slog.Default(),
		Metrics:  m,
	})
	j.Start(ctx)
	defer j.Stop()

	srv := newServer(cfg, buildHandler(cfg, svc, m, ping))
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "meta_backend", cfg.MetaBackend, "blob_backend", cfg.BlobBackend, "pid", os.Getpid())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

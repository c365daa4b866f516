// Package httpx contains the HTTP delivery layer (net/http handlers) for the
// SealBox service. It maps HTTP requests to the application service while
// enforcing authentication, size limits, security headers, and error
// translation. Handlers are split across files (login.go, upload.go,
// download.go, health.go, errors.go).
package httpx

import (
	"context"
	"net/http"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/metrics"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	Upload(ctx context.Context, req app.UploadRequest) (*app.UploadResult, error)
	Consume(ctx context.Context, token string) (*app.Download, error)
}

// TokenIssuer issues bearer tokens for the login endpoint.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// TokenVerifier checks bearer tokens on protected endpoints.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Handler wires HTTP endpoints to the application service.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service   ServicePort
	Issuer    TokenIssuer                 // nil disables /api/login and upload auth
	Verifier  TokenVerifier               // nil disables upload auth
	MaxBody   int64                       // mirror service MaxBytes for early rejection
	Readiness func(context.Context) error // optional readiness probe
	Metrics   *metrics.Metrics            // optional; nil disables instrumentation
}

// New returns a configured Handler.
func New(svc ServicePort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Service: svc, MaxBody: maxBody, Readiness: readiness}
}

// Router constructs an http.Handler with all routes mounted and the
// correlation and security-header middleware applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", h.handleLogin)
	mux.HandleFunc("/api/files", h.handleUpload)
	mux.HandleFunc("/api/files/", h.handleDownload) // expect /api/files/{token}
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics.Handler())
	}
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders middleware adds standard security and cache control headers.
// Download responses carry decrypted payloads and must never be cached.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		next.ServeHTTP(w, r)
	})
}

package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sealbox/sealbox/internal/app"
)

// multipartMemoryLimit caps how much of a parsed form is held in memory; the
// remainder spills to temp files.
const multipartMemoryLimit = 1 << 20

// handleUpload implements POST /api/files. The payload arrives as a
// multipart form with a "file" part and optional "ttl" and "downloads"
// fields overriding the configured defaults.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.URL.Path != "/api/files" { // disallow trailing slash variants
		h.writeError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	if h.Verifier != nil {
		cred, ok := bearerToken(r)
		if !ok {
			h.writeError(ctx, w, http.StatusUnauthorized, "missing credentials")
			return
		}
		if _, err := h.Verifier.Verify(cred); err != nil {
			h.writeError(ctx, w, http.StatusUnauthorized, "invalid credentials")
			return
		}
	}

	if h.MaxBody > 0 {
		// Generous slack for multipart framing; the service enforces the
		// exact payload limit.
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody+multipartMemoryLimit)
	}
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "unreadable file part")
		return
	}

	req := app.UploadRequest{
		Content:  content,
		Filename: filepath.Base(header.Filename),
	}
	if raw := r.FormValue("ttl"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid ttl")
			return
		}
		req.TTL = &ttl
	}
	if raw := r.FormValue("downloads"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid downloads")
			return
		}
		req.Quota = &n
	}

	res, err := h.Service.Upload(ctx, req)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.UploadFailures.Inc()
		}
		h.mapServiceError(ctx, w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.LinksCreated.Inc()
		h.Metrics.UploadBytes.Observe(float64(len(content)))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}{Token: res.Token.String(), ExpiresAt: res.ExpiresAt})
}

package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sealbox/sealbox/internal/domain"
)

// writeError writes a JSON error body with the given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain/service errors to HTTP responses. Unknown
// tokens and terminal links are the consumer-facing denials; everything else
// is a fault reported as 500 without leaking details.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		slog.Info("service error", "cid", cid, "code", "invalid_token")
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrLinkExpired):
		slog.Info("service error", "cid", cid, "code", "link_expired")
		h.writeError(ctx, w, http.StatusForbidden, "link expired")
	case errors.Is(err, domain.ErrLinkExhausted):
		slog.Info("service error", "cid", cid, "code", "link_exhausted")
		h.writeError(ctx, w, http.StatusForbidden, "download limit reached")
	case errors.Is(err, domain.ErrSizeExceeded):
		slog.Warn("service error", "cid", cid, "code", "size_exceeded")
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "size exceeded")
	case errors.Is(err, domain.ErrTTLInvalid):
		slog.Warn("service error", "cid", cid, "code", "ttl_invalid")
		h.writeError(ctx, w, http.StatusBadRequest, "ttl invalid")
	case errors.Is(err, domain.ErrFileMissing):
		slog.Error("service error", "cid", cid, "code", "file_missing")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	case errors.Is(err, domain.ErrCorruptedFile):
		slog.Error("service error", "cid", cid, "code", "corrupted_file")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	default:
		// Do not log raw error strings here to avoid leaking keys or paths.
		slog.Error("unhandled service error", "cid", cid, "code", "unhandled")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}

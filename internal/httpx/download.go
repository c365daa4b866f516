package httpx

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/sealbox/sealbox/internal/domain"
)

// handleDownload implements GET /api/files/{token}.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	const prefix = "/api/files/"
	if len(r.URL.Path) <= len(prefix) || r.URL.Path[:len(prefix)] != prefix {
		h.writeError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	token := r.URL.Path[len(prefix):]

	dl, err := h.Service.Consume(ctx, token)
	if err != nil {
		h.countConsumeFailure(err)
		h.mapServiceError(ctx, w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.LinksConsumed.Inc()
	}

	filename := dl.Filename
	if filename == "" {
		filename = token
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Content)
}

func (h *Handler) countConsumeFailure(err error) {
	if h.Metrics == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrLinkExpired):
		h.Metrics.LinksExpired.Inc()
	case errors.Is(err, domain.ErrLinkExhausted):
		h.Metrics.LinksExhausted.Inc()
	case errors.Is(err, domain.ErrInvalidToken):
		// Unknown tokens are normal noise, not a fault.
	default:
		h.Metrics.ConsumeFailures.Inc()
	}
}

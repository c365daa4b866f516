package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// handleLogin implements POST /api/login. Any syntactically plausible email
// is accepted; the issued token only proves the caller went through login, it
// carries no authorization beyond upload access.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Issuer == nil {
		h.writeError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid email")
		return
	}
	token, err := h.Issuer.Issue(email)
	if err != nil {
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}{AccessToken: token, TokenType: "bearer"})
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	hdr := r.Header.Get("Authorization")
	if len(hdr) <= len(prefix) || !strings.EqualFold(hdr[:len(prefix)], prefix) {
		return "", false
	}
	return hdr[len(prefix):], true
}

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sealbox/sealbox/internal/cipher"
	"github.com/sealbox/sealbox/internal/config"
	"github.com/sealbox/sealbox/internal/metrics"
	"github.com/sealbox/sealbox/internal/store/filesystem"
	"github.com/sealbox/sealbox/internal/store/sqlite"
)

func TestEnsureDataDir(t *testing.T) {
	tmp := t.TempDir()
	data := filepath.Join(tmp, "data-root")
	blobDir := ensureDataDir(data)
	if blobDir != filepath.Join(data, "blobs") {
		t.Fatalf("blob dir mismatch got %s", blobDir)
	}
	if st, err := os.Stat(blobDir); err != nil || !st.IsDir() {
		t.Fatalf("blob dir not created: %v", err)
	}
	// Idempotent on an existing tree.
	if got := ensureDataDir(data); got != blobDir {
		t.Fatalf("second call mismatch: %s", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestUploadDownloadThroughRouter wires real sqlite and filesystem backends
// and exercises the composed handler end to end.
func TestUploadDownloadThroughRouter(t *testing.T) {
	tmp := t.TempDir()
	blobDir := ensureDataDir(tmp)

	db, err := sql.Open("sqlite3", filepath.Join(tmp, "sealbox.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	meta, err := sqlite.New(db)
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	blobs, err := filesystem.New(blobDir)
	if err != nil {
		t.Fatalf("init blobs: %v", err)
	}
	c, err := cipher.New(bytes.Repeat([]byte{0x42}, cipher.KeyLen))
	if err != nil {
		t.Fatalf("init cipher: %v", err)
	}

	cfg := config.DefaultAppConfig
	svc := buildService(meta, blobs, c, &cfg, realClock{})
	router := buildHandler(&cfg, svc, metrics.New(), db.PingContext)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "note.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write([]byte("end to end")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body = %s", rec.Code, rec.Body)
	}
	var created struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	dlReq := httptest.NewRequest(http.MethodGet, "/api/files/"+created.Token, nil)
	dlRec := httptest.NewRecorder()
	router.ServeHTTP(dlRec, dlReq)
	if dlRec.Code != http.StatusOK {
		t.Fatalf("download status = %d body = %s", dlRec.Code, dlRec.Body)
	}
	if dlRec.Body.String() != "end to end" {
		t.Fatalf("payload = %q", dlRec.Body.String())
	}
}

func TestOpenMetaStoreSQLite(t *testing.T) {
	cfg := config.DefaultAppConfig
	cfg.DataDir = t.TempDir()
	meta, ping, closeFn := openMetaStore(context.Background(), &cfg)
	t.Cleanup(func() { _ = closeFn() })
	if meta == nil {
		t.Fatal("nil metadata store")
	}
	if err := ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

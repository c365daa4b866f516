package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorsRegisterAndServe(t *testing.T) {
	m := New()
	m.LinksCreated.Inc()
	m.LinksConsumed.Inc()
	m.LinksExpired.Inc()
	m.UploadBytes.Observe(2048)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := string(body)
	for _, want := range []string{
		"sealbox_links_created_total 1",
		"sealbox_links_consumed_total 1",
		"sealbox_links_expired_total 1",
		"sealbox_upload_bytes_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not clash on registration.
	a := New()
	b := New()
	a.LinksCreated.Inc()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)
	if body, _ := io.ReadAll(rec.Body); strings.Contains(string(body), "sealbox_links_created_total 1") {
		t.Fatal("registries are shared")
	}
}

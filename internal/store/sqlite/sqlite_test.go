package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sealbox/sealbox/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "links.db")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func testLink(token domain.Token) domain.Link {
	return domain.Link{
		Token:         token,
		StorageKey:    token.String() + ".txt",
		Filename:      "report.txt",
		ExpiresAt:     time.Unix(1700001800, 0).UTC(),
		DownloadsLeft: 3,
	}
}

func TestCreateAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := testLink("aaaa1111")

	if err := s.Create(ctx, want); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.FindByToken(ctx, "aaaa1111")
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if *got != want {
		t.Fatalf("record mismatch:\n got %+v\nwant %+v", *got, want)
	}
}

func TestFindAbsentToken(t *testing.T) {
	s := newTestStore(t)
	got, err := s.FindByToken(context.Background(), "zzzz9999")
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestCreateDuplicateToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, testLink("aaaa1111")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, testLink("aaaa1111")); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestDecrementFloorsAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	link := testLink("aaaa1111")
	link.DownloadsLeft = 2
	if err := s.Create(ctx, link); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, want := range []int64{1, 0, 0, 0} {
		got, err := s.DecrementDownloads(ctx, "aaaa1111")
		if err != nil {
			t.Fatalf("DecrementDownloads: %v", err)
		}
		if got != want {
			t.Fatalf("DecrementDownloads = %d, want %d", got, want)
		}
	}
}

func TestDecrementAbsentToken(t *testing.T) {
	s := newTestStore(t)
	got, err := s.DecrementDownloads(context.Background(), "zzzz9999")
	if err != nil {
		t.Fatalf("DecrementDownloads: %v", err)
	}
	if got != 0 {
		t.Fatalf("DecrementDownloads = %d, want 0", got)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, testLink("aaaa1111")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, "aaaa1111"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "aaaa1111"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	got, err := s.FindByToken(ctx, "aaaa1111")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestDeleteExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Unix(1700000000, 0).UTC()

	stale := testLink("aaaa1111")
	stale.ExpiresAt = cutoff.Add(-time.Hour)
	fresh := testLink("bbbb2222")
	fresh.ExpiresAt = cutoff.Add(time.Hour)
	for _, l := range []domain.Link{stale, fresh} {
		if err := s.Create(ctx, l); err != nil {
			t.Fatalf("Create %s: %v", l.Token, err)
		}
	}

	removed, err := s.DeleteExpired(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if len(removed) != 1 || removed[0].Token != "aaaa1111" {
		t.Fatalf("DeleteExpired returned %+v", removed)
	}
	if removed[0].StorageKey != "aaaa1111.txt" {
		t.Fatalf("expected storage key for blob cleanup, got %q", removed[0].StorageKey)
	}

	if got, _ := s.FindByToken(ctx, "aaaa1111"); got != nil {
		t.Fatal("expired record still present")
	}
	if got, _ := s.FindByToken(ctx, "bbbb2222"); got == nil {
		t.Fatal("live record was removed")
	}
}

func TestListStorageKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, tok := range []domain.Token{"aaaa1111", "bbbb2222"} {
		if err := s.Create(ctx, testLink(tok)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	keys, err := s.ListStorageKeys(ctx)
	if err != nil {
		t.Fatalf("ListStorageKeys: %v", err)
	}
	sort.Strings(keys)
	want := []string{"aaaa1111.txt", "bbbb2222.txt"}
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Fatalf("ListStorageKeys = %v, want %v", keys, want)
	}
}

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sealbox/sealbox/internal/domain"
)

// newTestStore connects to the instance named by SEALBOX_TEST_REDIS_ADDR,
// skipping the test when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("SEALBOX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SEALBOX_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, addr, "", 15) // dedicated test database
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLink(t *testing.T, s *Store, token domain.Token) domain.Link {
	t.Helper()
	t.Cleanup(func() { _ = s.Delete(context.Background(), token) })
	return domain.Link{
		Token:         token,
		StorageKey:    token.String() + ".txt",
		Filename:      "report.txt",
		ExpiresAt:     time.Unix(1700001800, 0).UTC(),
		DownloadsLeft: 3,
	}
}

func TestCreateFindDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := testLink(t, s, "rdaa1111")

	if err := s.Create(ctx, want); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.FindByToken(ctx, want.Token)
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("record mismatch: got %+v want %+v", got, want)
	}

	if err := s.Delete(ctx, want.Token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, want.Token); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	got, err = s.FindByToken(ctx, want.Token)
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) after delete, got (%+v, %v)", got, err)
	}
}

func TestCreateDuplicateToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	link := testLink(t, s, "rdbb2222")
	if err := s.Create(ctx, link); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, link); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestDecrementFloorsAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	link := testLink(t, s, "rdcc3333")
	link.DownloadsLeft = 2
	if err := s.Create(ctx, link); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, want := range []int64{1, 0, 0} {
		got, err := s.DecrementDownloads(ctx, link.Token)
		if err != nil {
			t.Fatalf("DecrementDownloads: %v", err)
		}
		if got != want {
			t.Fatalf("DecrementDownloads = %d, want %d", got, want)
		}
	}
	if got, err := s.DecrementDownloads(ctx, "rdzz9999"); err != nil || got != 0 {
		t.Fatalf("absent token: got (%d, %v), want (0, nil)", got, err)
	}
}

func TestDeleteExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Unix(1700000000, 0).UTC()

	stale := testLink(t, s, "rddd4444")
	stale.ExpiresAt = cutoff.Add(-time.Hour)
	fresh := testLink(t, s, "rdee5555")
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
	found := false
	for _, l := range removed {
		if l.Token == stale.Token {
			found = true
		}
		if l.Token == fresh.Token {
			t.Fatal("live record was removed")
		}
	}
	if !found {
		t.Fatalf("expired record not returned: %+v", removed)
	}
	if got, _ := s.FindByToken(ctx, stale.Token); got != nil {
		t.Fatal("expired record still present")
	}
	if got, _ := s.FindByToken(ctx, fresh.Token); got == nil {
		t.Fatal("live record missing after sweep")
	}
}

func TestListStorageKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	link := testLink(t, s, "rdff6666")
	if err := s.Create(ctx, link); err != nil {
		t.Fatalf("Create: %v", err)
	}
	keys, err := s.ListStorageKeys(ctx)
	if err != nil {
		t.Fatalf("ListStorageKeys: %v", err)
	}
	for _, k := range keys {
		if k == link.StorageKey {
			return
		}
	}
	t.Fatalf("key %q not listed in %v", link.StorageKey, keys)
}

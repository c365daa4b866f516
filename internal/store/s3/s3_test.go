package s3

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sealbox/sealbox/internal/domain"
)

// newTestStore targets the bucket named by SEALBOX_TEST_S3_BUCKET on the
// endpoint named by SEALBOX_TEST_S3_ENDPOINT (a local MinIO works), skipping
// the test when either is unset.
func newTestStore(t *testing.T) *BlobStore {
	t.Helper()
	bucket := os.Getenv("SEALBOX_TEST_S3_BUCKET")
	endpoint := os.Getenv("SEALBOX_TEST_S3_ENDPOINT")
	if bucket == "" || endpoint == "" {
		t.Skip("SEALBOX_TEST_S3_BUCKET or SEALBOX_TEST_S3_ENDPOINT not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b, err := New(ctx, Options{
		Bucket:    bucket,
		Region:    envOr("SEALBOX_TEST_S3_REGION", "us-east-1"),
		Endpoint:  endpoint,
		AccessKey: os.Getenv("SEALBOX_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("SEALBOX_TEST_S3_SECRET_KEY"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func TestPutGetDelete(t *testing.T) {
	b := newTestStore(t)
	ctx := context.Background()
	key := "s3aa1111.txt"
	data := []byte("sealed payload bytes")
	t.Cleanup(func() { _ = b.Delete(context.Background(), key) })

	if err := b.Put(ctx, key, data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := b.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("stored bytes differ")
	}

	if err := b.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, key); !errors.Is(err, domain.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound after delete, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	b := newTestStore(t)
	if _, err := b.Get(context.Background(), "s3zz9999.txt"); !errors.Is(err, domain.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestDeleteMissingIsIdempotent(t *testing.T) {
	b := newTestStore(t)
	if err := b.Delete(context.Background(), "s3zz9999.txt"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
}

func TestList(t *testing.T) {
	b := newTestStore(t)
	ctx := context.Background()
	key := "s3bb2222.pdf"
	t.Cleanup(func() { _ = b.Delete(context.Background(), key) })
	if err := b.Put(ctx, key, []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	keys, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	t.Fatalf("key %q not listed in %v", key, keys)
}

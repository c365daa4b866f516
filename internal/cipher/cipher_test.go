package cipher

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	k := make([]byte, KeyLen)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestNewRejectsBadKey(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := New(make([]byte, n)); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key length %d: expected ErrInvalidKey, got %v", n, err)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey(0x42))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xAB}, 1<<16),
	}
	for _, plain := range payloads {
		sealed, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if bytes.Contains(sealed, plain) && len(plain) > 0 {
			t.Fatal("sealed output contains plaintext")
		}
		got, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("round-trip mismatch: got %d bytes, want %d", len(got), len(plain))
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c, _ := New(testKey(0x01))
	a, err := c.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext produced identical output")
	}
}

func TestDecryptFailures(t *testing.T) {
	c, _ := New(testKey(0x01))
	sealed, err := c.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xFF
		if _, err := c.Decrypt(bad); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		if _, err := c.Decrypt(sealed[:5]); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := c.Decrypt(nil); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("wrong_key", func(t *testing.T) {
		other, _ := New(testKey(0x02))
		if _, err := other.Decrypt(sealed); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})
}

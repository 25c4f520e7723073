package credential

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Strob0t/memorybridge/internal/domain"
)

func TestDeriveKey(t *testing.T) {
	k1 := DeriveKey("my-secret")
	if len(k1) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k1))
	}
	if !bytes.Equal(k1, DeriveKey("my-secret")) {
		t.Fatal("same input must produce same key")
	}
	if bytes.Equal(k1, DeriveKey("other-secret")) {
		t.Fatal("different inputs must produce different keys")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := DeriveKey("test-secret")
	plaintext := []byte("z_1dWlkIjoiZXhhbXBsZS1rZXkifQ")

	ct, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(ct) <= len(plaintext) {
		t.Fatal("ciphertext should be longer than plaintext")
	}

	got, err := Decrypt(ct, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round-trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestEncrypt_FreshNonce(t *testing.T) {
	key := DeriveKey("test-secret")
	a, _ := Encrypt([]byte("same"), key)
	b, _ := Encrypt([]byte("same"), key)
	if bytes.Equal(a, b) {
		t.Fatal("expected different ciphertexts for repeated encryption")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	ct, err := Encrypt([]byte("secret"), DeriveKey("key-a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(ct, DeriveKey("key-b")); err == nil {
		t.Fatal("expected error decrypting with wrong key")
	}
}

func TestDecrypt_TooShort(t *testing.T) {
	if _, err := Decrypt([]byte("short"), DeriveKey("k")); err == nil {
		t.Fatal("expected error for short ciphertext")
	}
}

func TestSetRequestValidate(t *testing.T) {
	req := SetRequest{WorkspaceID: "ws", APIKey: "k"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Provider != ProviderZep {
		t.Fatalf("expected provider default %q, got %q", ProviderZep, req.Provider)
	}

	for _, bad := range []SetRequest{{APIKey: "k"}, {WorkspaceID: "ws"}} {
		if err := bad.Validate(); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", bad, err)
		}
	}
}

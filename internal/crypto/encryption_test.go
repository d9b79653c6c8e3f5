package crypto

import (
	"encoding/base64"
	"testing"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor("test-secret-value")
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := "1//0refresh-token-value"
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if string(ciphertext) == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptor_Base64Key(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	enc, err := NewEncryptor(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	ct, err := enc.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	pt, err := enc.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if pt != "hello" {
		t.Errorf("got %q, want %q", pt, "hello")
	}
}

func TestEncryptor_WrongKey(t *testing.T) {
	a, _ := NewEncryptor("secret-a")
	b, _ := NewEncryptor("secret-b")

	ct, err := a.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := b.Decrypt(ct); err == nil {
		t.Error("expected decryption with wrong key to fail")
	}
}

func TestEncryptor_EmptySecret(t *testing.T) {
	if _, err := NewEncryptor(""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestEncryptor_TamperedCiphertext(t *testing.T) {
	enc, _ := NewEncryptor("test-secret")
	ct, err := enc.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := enc.Decrypt([]byte("not-base64!!")); err == nil {
		t.Error("expected error for invalid encoding")
	}

	ct[len(ct)-5] ^= 0x01
	if _, err := enc.Decrypt(ct); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
}

package crypto

import (
	"encoding/hex"
	"regexp"
	"strings"
	"testing"
)

func testKey() string {
	return strings.Repeat("ab", 32) // 64 hex chars = 32 bytes
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plaintext := `{"username":"alice","password":"s3cret"}`
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	matched, _ := regexp.MatchString(`^[0-9a-f]{32}:[0-9a-f]+$`, ciphertext)
	if !matched {
		t.Fatalf("ciphertext shape mismatch: %q", ciphertext)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext must not equal plaintext JSON")
	}

	got, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if got != plaintext {
		t.Fatalf("round-trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	ciphertext, _ := enc.Encrypt("hello world")

	wrongKey := strings.Repeat("cd", 32)
	other, _ := NewEncryptor(wrongKey)
	got, err := other.Decrypt(ciphertext)
	if err == nil && got == "hello world" {
		t.Fatal("expected decryption with the wrong key to fail or produce garbage")
	}
}

func TestNewEncryptorRejectsBadKeyLength(t *testing.T) {
	if _, err := NewEncryptor("tooshort"); err != ErrBadKey {
		t.Fatalf("expected ErrBadKey, got %v", err)
	}
}

func TestDecryptRejectsMalformedCiphertext(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	cases := []string{
		"not-hex-at-all",
		"deadbeef",
		hex.EncodeToString(make([]byte, 16)) + "nocolon",
		hex.EncodeToString(make([]byte, 8)) + ":" + hex.EncodeToString(make([]byte, 16)), // short IV
	}
	for _, c := range cases {
		if _, err := enc.Decrypt(c); err != ErrBadCiphertext {
			t.Errorf("Decrypt(%q): expected ErrBadCiphertext, got %v", c, err)
		}
	}
}

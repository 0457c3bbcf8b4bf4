package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor("test-key")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	sealed, err := enc.Encrypt("0.ARoBv4j5cvGG-refresh-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == "" || strings.Contains(sealed, "refresh-token") {
		t.Fatalf("ciphertext leaks plaintext: %q", sealed)
	}

	opened, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if opened != "0.ARoBv4j5cvGG-refresh-token" {
		t.Errorf("round trip mismatch: got %q", opened)
	}
}

func TestEncryptEmptyStringPassesThrough(t *testing.T) {
	enc, _ := NewEncryptor("test-key")

	sealed, err := enc.Encrypt("")
	if err != nil || sealed != "" {
		t.Fatalf("Encrypt(\"\") = %q, %v; want \"\", nil", sealed, err)
	}
	opened, err := enc.Decrypt("")
	if err != nil || opened != "" {
		t.Fatalf("Decrypt(\"\") = %q, %v; want \"\", nil", opened, err)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	enc1, _ := NewEncryptor("key-one")
	enc2, _ := NewEncryptor("key-two")

	sealed, err := enc1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := enc2.Decrypt(sealed); !errors.Is(err, ErrCorruptCiphertext) {
		t.Errorf("Decrypt with wrong key: got %v, want ErrCorruptCiphertext", err)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	enc, _ := NewEncryptor("test-key")

	sealed, err := enc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip a character in the middle of the encoded blob.
	mid := len(sealed) / 2
	flipped := "A"
	if sealed[mid] == 'A' {
		flipped = "B"
	}
	tampered := sealed[:mid] + flipped + sealed[mid+1:]

	if _, err := enc.Decrypt(tampered); !errors.Is(err, ErrCorruptCiphertext) {
		t.Errorf("Decrypt tampered: got %v, want ErrCorruptCiphertext", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	enc, _ := NewEncryptor("test-key")

	for _, input := range []string{"not base64!!", "YWJj"} {
		if _, err := enc.Decrypt(input); !errors.Is(err, ErrCorruptCiphertext) {
			t.Errorf("Decrypt(%q): got %v, want ErrCorruptCiphertext", input, err)
		}
	}
}

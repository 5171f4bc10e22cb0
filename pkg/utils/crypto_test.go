package utils

import (
	"regexp"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ConfigureEncryption("test-secret")

	plaintext := "JBSWY3DPEHPK3PXP"
	encrypted, err := EncryptAESGCM(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if encrypted == plaintext {
		t.Fatal("encrypted value equals plaintext")
	}

	decrypted, err := DecryptAESGCM(encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Fatalf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestDecryptRejectsNonCiphertext(t *testing.T) {
	ConfigureEncryption("test-secret")

	if _, err := DecryptAESGCM("not-encrypted"); err == nil {
		t.Fatal("expected an error for a value that was never encrypted")
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	ConfigureEncryption("test-secret")

	a, err := EncryptAESGCM("same input")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	b, err := EncryptAESGCM("same input")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same input produced identical ciphertexts")
	}
}

func TestHashPinNeverStoresPlaintext(t *testing.T) {
	hash, err := HashPin("123456")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "123456" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPin("123456", hash) {
		t.Fatal("correct PIN rejected")
	}
	if CheckPin("654321", hash) {
		t.Fatal("wrong PIN accepted")
	}
}

func TestRandomToken(t *testing.T) {
	token, err := RandomToken(32)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}

	other, err := RandomToken(32)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if token == other {
		t.Fatal("two generated tokens are identical")
	}
}

func TestRandomDigits(t *testing.T) {
	code, err := RandomDigits(6)
	if err != nil {
		t.Fatalf("code generation failed: %v", err)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Fatalf("expected 6 digits, got %q", code)
	}
}

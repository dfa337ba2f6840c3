package usm_test

import (
	"bytes"
	"testing"

	"github.com/vpbank/snmpagent/usm"
)

func TestLocalizeKeyIsDeterministic(t *testing.T) {
	engineID := []byte{0x80, 0x00, 0x1f, 0x88, 0x80, 0x4f, 0x6f, 0x6f, 0x64, 0x6c, 0x65}
	a, err := usm.LocalizeKey("authpassword123", engineID, usm.AuthModeSHA1)
	if err != nil {
		t.Fatalf("LocalizeKey: %v", err)
	}
	b, err := usm.LocalizeKey("authpassword123", engineID, usm.AuthModeSHA1)
	if err != nil {
		t.Fatalf("LocalizeKey: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("LocalizeKey is not deterministic: %x != %x", a, b)
	}
	if len(a) != 20 {
		t.Fatalf("SHA1-localized key length = %d, want 20", len(a))
	}
}

func TestLocalizeKeyDiffersByEngineID(t *testing.T) {
	a, _ := usm.LocalizeKey("authpassword123", []byte{0x01, 0x02}, usm.AuthModeMD5)
	b, _ := usm.LocalizeKey("authpassword123", []byte{0x03, 0x04}, usm.AuthModeMD5)
	if bytes.Equal(a, b) {
		t.Fatalf("localized keys for different engine IDs should differ")
	}
	if len(a) != 16 {
		t.Fatalf("MD5-localized key length = %d, want 16", len(a))
	}
}

func TestLocalizeKeyDiffersByPassphrase(t *testing.T) {
	engineID := []byte{0x80, 0x00, 0x1f, 0x88}
	a, _ := usm.LocalizeKey("passwordone", engineID, usm.AuthModeMD5)
	b, _ := usm.LocalizeKey("passwordtwo", engineID, usm.AuthModeMD5)
	if bytes.Equal(a, b) {
		t.Fatalf("localized keys for different passphrases should differ")
	}
}

// Authenticate/VerifyAuth implement the zero-then-stamp discipline: the
// digest is computed with the auth-param field zeroed, then the caller
// overwrites that field with the real digest before sending. VerifyAuth
// must be called the same way on receipt: re-zero the field, recompute, and
// compare against the stamped value saved aside beforehand.
func TestAuthenticateZeroThenStampRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	msg := []byte("a snmp message with a 12-byte authparam placeholder here......")

	// Simulate the placeholder: 12 zero bytes at a known offset.
	placeholderOffset := 10
	copy(msg[placeholderOffset:placeholderOffset+12], make([]byte, 12))

	digest, err := usm.Authenticate(key, usm.AuthModeSHA1, msg)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(digest) != 12 {
		t.Fatalf("digest length = %d, want 12", len(digest))
	}

	// Stamp, then verify: zero the field again before recomputing, exactly
	// as a receiver would after copying the stamped value aside.
	stamped := append([]byte(nil), msg...)
	copy(stamped[placeholderOffset:placeholderOffset+12], digest)

	received := append([]byte(nil), stamped...)
	savedDigest := append([]byte(nil), received[placeholderOffset:placeholderOffset+12]...)
	copy(received[placeholderOffset:placeholderOffset+12], make([]byte, 12))

	ok, err := usm.VerifyAuth(key, usm.AuthModeSHA1, received, savedDigest)
	if err != nil {
		t.Fatalf("VerifyAuth: %v", err)
	}
	if !ok {
		t.Fatalf("VerifyAuth rejected a validly stamped message")
	}
}

func TestVerifyAuthRejectsTamperedMessage(t *testing.T) {
	key := []byte("k")
	msg := []byte("hello world, this is the pdu content..........")
	digest, _ := usm.Authenticate(key, usm.AuthModeMD5, msg)

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xFF
	ok, err := usm.VerifyAuth(key, usm.AuthModeMD5, tampered, digest)
	if err != nil {
		t.Fatalf("VerifyAuth: %v", err)
	}
	if ok {
		t.Fatalf("VerifyAuth accepted a tampered message")
	}
}

// Scenario 6 (v3 authPriv round trip): encrypt under one engineBoots/Time
// and privParams, then decrypt with the same values, recovering the
// original scoped PDU bytes.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	privKey := make([]byte, 16)
	for i := range privKey {
		privKey[i] = byte(i)
	}
	plaintext := []byte("a scoped pdu payload of arbitrary length, not block-aligned")

	ciphertext, privParams, err := usm.Encrypt(privKey, 7, 123456, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(privParams) != 8 {
		t.Fatalf("privParams length = %d, want 8", len(privParams))
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatalf("ciphertext should not equal plaintext")
	}

	recovered, err := usm.Decrypt(privKey, 7, 123456, privParams, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatalf("Decrypt = %q, want %q", recovered, plaintext)
	}
}

func TestDecryptWrongBootsFails(t *testing.T) {
	privKey := make([]byte, 16)
	plaintext := []byte("some secret content")
	ciphertext, privParams, _ := usm.Encrypt(privKey, 1, 1, plaintext)

	recovered, err := usm.Decrypt(privKey, 2, 1, privParams, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if bytes.Equal(recovered, plaintext) {
		t.Fatalf("decrypting with a mismatched engineBoots should not recover the original plaintext")
	}
}

// Package usm implements the SNMPv3 User-based Security Model (RFC 3414):
// password-to-key localization, HMAC message authentication, and AES-CFB
// privacy (RFC 3826).
package usm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
)

// AuthMode selects the hash algorithm key localization and authentication
// use.
type AuthMode int

const (
	AuthModeMD5 AuthMode = iota
	AuthModeSHA1
)

func (m AuthMode) newHash() (func() hash.Hash, error) {
	switch m {
	case AuthModeMD5:
		return md5.New, nil
	case AuthModeSHA1:
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("usm: unknown AuthMode %d", m)
	}
}

// expandedKeyLen is the RFC 3414 Appendix A.2 password-expansion length:
// the passphrase is repeated to fill exactly this many bytes before hashing.
const expandedKeyLen = 1 << 20

// authParamLen is the truncated HMAC digest length stamped into
// msgAuthenticationParameters, independent of the underlying hash's native
// output size (RFC 3414 §6.3.3).
const authParamLen = 12

// LocalizeKey derives the per-engine USM key from passphrase, following
// RFC 3414 Appendix A.2: the passphrase is cyclically repeated to exactly
// 2^20 bytes and hashed to produce Ku, then Ku is localized to engineID by
// hashing Ku||engineID||Ku.
func LocalizeKey(passphrase string, engineID []byte, mode AuthMode) ([]byte, error) {
	newHash, err := mode.newHash()
	if err != nil {
		return nil, err
	}

	h := newHash()
	expanded := expandPassphrase(passphrase, expandedKeyLen)
	h.Write(expanded)
	ku := h.Sum(nil)

	h2 := newHash()
	h2.Write(ku)
	h2.Write(engineID)
	h2.Write(ku)
	return h2.Sum(nil), nil
}

// expandPassphrase repeats passphrase's bytes cyclically until exactly n
// bytes have been produced, per RFC 3414 Appendix A.2's "password string...
// repeated to the nearest 1,048,576 bytes" rule.
func expandPassphrase(passphrase string, n int) []byte {
	if len(passphrase) == 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = passphrase[i%len(passphrase)]
	}
	return out
}

// Authenticate computes the truncated HMAC digest for msg under key and
// mode. The caller must have already zeroed the 12-byte
// msgAuthenticationParameters field within msg before calling, per the
// "zero-then-stamp" discipline: the digest is computed over the whole
// message with that field held at zero, then stamped into the real field by
// the caller afterward.
func Authenticate(key []byte, mode AuthMode, msg []byte) ([]byte, error) {
	newHash, err := mode.newHash()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, key)
	mac.Write(msg)
	sum := mac.Sum(nil)
	return sum[:authParamLen], nil
}

// VerifyAuth reports whether want matches the HMAC digest Authenticate
// would compute for msg, in constant time.
func VerifyAuth(key []byte, mode AuthMode, msg []byte, want []byte) (bool, error) {
	got, err := Authenticate(key, mode, msg)
	if err != nil {
		return false, err
	}
	return hmac.Equal(got, want), nil
}

// Encrypt applies AES-CFB-128 privacy to plaintext (RFC 3826). It generates
// a random 8-byte salt, combines it with engineBoots/engineTime to form the
// IV, and returns the ciphertext alongside the 8-byte privParams value the
// caller stamps into msgPrivacyParameters so Decrypt can reconstruct the IV.
func Encrypt(privKey []byte, engineBoots, engineTime uint32, plaintext []byte) ([]byte, []byte, error) {
	block, err := aes.NewCipher(privKey[:16])
	if err != nil {
		return nil, nil, fmt.Errorf("usm: Encrypt: %w", err)
	}
	var salt [8]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, nil, fmt.Errorf("usm: Encrypt: generating salt: %w", err)
	}
	iv := buildIV(engineBoots, engineTime, salt)
	stream := cipher.NewCFBEncrypter(block, iv[:])
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)
	return ciphertext, salt[:], nil
}

// Decrypt reverses Encrypt given the privParams salt it returned.
func Decrypt(privKey []byte, engineBoots, engineTime uint32, privParams []byte, ciphertext []byte) ([]byte, error) {
	if len(privParams) != 8 {
		return nil, fmt.Errorf("usm: Decrypt: privParams length %d, want 8", len(privParams))
	}
	block, err := aes.NewCipher(privKey[:16])
	if err != nil {
		return nil, fmt.Errorf("usm: Decrypt: %w", err)
	}
	var salt [8]byte
	copy(salt[:], privParams)
	iv := buildIV(engineBoots, engineTime, salt)
	stream := cipher.NewCFBDecrypter(block, iv[:])
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// buildIV forms the 16-byte AES-CFB IV as engineBoots (4 bytes, big-endian)
// || engineTime (4 bytes, big-endian) || salt (8 bytes), per RFC 3826 §3.1.1.
func buildIV(engineBoots, engineTime uint32, salt [8]byte) [16]byte {
	var iv [16]byte
	iv[0] = byte(engineBoots >> 24)
	iv[1] = byte(engineBoots >> 16)
	iv[2] = byte(engineBoots >> 8)
	iv[3] = byte(engineBoots)
	iv[4] = byte(engineTime >> 24)
	iv[5] = byte(engineTime >> 16)
	iv[6] = byte(engineTime >> 8)
	iv[7] = byte(engineTime)
	copy(iv[8:], salt[:])
	return iv
}

package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken creates a random token of size bytes, base64url encoded
// without padding. Refresh tokens and MFA session ids use TokenSize256.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is like GenerateToken but panics on error.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}

// FingerprintToken returns the base64url SHA-256 of a token (43 chars).
// Only fingerprints of refresh tokens and backup codes are ever stored.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SHA256Hex returns the lowercase hex SHA-256 of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// backupAlphabet drops 0/O and 1/I so codes survive being read aloud.
const backupAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateBackupCode returns a code formatted XXXX-XXXX-XXXX.
func GenerateBackupCode() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate backup code: %w", err)
	}

	var b strings.Builder
	b.Grow(14)
	for i, v := range buf {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		// 256 is a multiple of 32, so the modulo is unbiased.
		b.WriteByte(backupAlphabet[int(v)%len(backupAlphabet)])
	}
	return b.String(), nil
}

// NormalizeBackupCode upper-cases a user supplied code and restores the
// dash layout, so "abcd efgh ijkl" and "ABCD-EFGH-IJKL" fingerprint equally.
func NormalizeBackupCode(code string) string {
	var raw strings.Builder
	for _, r := range strings.ToUpper(code) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			raw.WriteRune(r)
		}
	}
	s := raw.String()
	if len(s) != 12 {
		return s
	}
	return s[0:4] + "-" + s[4:8] + "-" + s[8:12]
}

// IsBackupCodeShape reports whether code looks like a backup code rather
// than a six digit TOTP value.
func IsBackupCodeShape(code string) bool {
	return len(NormalizeBackupCode(code)) == 14
}

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText converts CRLF line endings to LF and trims surrounding
// whitespace. It is applied before hashing and before extraction.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

// ContentHash is the hex sha256 of the normalized text.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(NormalizeText(content)))
	return hex.EncodeToString(sum[:])
}

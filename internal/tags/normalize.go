// Package tags canonicalizes tag spellings so feed-provided and
// AI-generated tags converge on one key space.
package tags

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize maps a raw tag to its canonical key: lower-cased, runs of
// non-alphanumerics collapsed to a single hyphen, outer hyphens
// trimmed. Total and idempotent; input with no usable characters maps
// to a stable hash-derived key instead of being rejected.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSep := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}

	key := b.String()
	if key == "" {
		return fallbackKey(raw)
	}
	return key
}

// fallbackKey derives a key from the raw bytes for tags that normalize
// to nothing (emoji-only, punctuation-only, empty). The result is
// itself a fixed point of Normalize.
func fallbackKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "t-" + hex.EncodeToString(sum[:6])
}

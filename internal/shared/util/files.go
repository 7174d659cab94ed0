package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameLen caps sanitized names; the extension survives truncation.
const MaxFileNameLen = 180

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName turns an uploaded or exported file name into a single
// safe path segment. Traversal attempts are rejected outright.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case unicode.IsControl(r) || r == utf8.RuneError:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" || s == "." {
		return "", ErrInvalidFileName
	}
	return truncateName(s, MaxFileNameLen), nil
}

func truncateName(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	ext := path.Ext(s)
	if utf8.RuneCountInString(ext) >= limit/2 {
		ext = ""
	}
	base := []rune(strings.TrimSuffix(s, ext))
	keep := limit - utf8.RuneCountInString(ext)
	return string(base[:keep]) + ext
}

// UserPartition maps a user id to the directory segment its stored
// documents and exports live under. Raw ids never reach object keys.
func UserPartition(userID string) string {
	sum := sha256.Sum256([]byte("tender-evaluator/user:" + userID))
	return hex.EncodeToString(sum[:16])
}

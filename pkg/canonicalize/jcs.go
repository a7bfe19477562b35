// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and SHA-256 digests. The canonical form produced here is the
// definition of equality for every downstream hash in the engine.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// JCS returns the canonical JSON representation of v.
//
//  1. Object keys are sorted at every level.
//  2. HTML and non-ASCII characters are NOT escaped.
//  3. Separators are compact; arrays keep their order.
//
// v is first marshaled with encoding/json so that struct tags and custom
// MarshalJSON implementations are honored, then transformed by gowebpki/jcs.
func JCS(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}

	out, err := jcs.Transform(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// JCSString returns the canonical form as a string.
func JCSString(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MustJCSString is JCSString for values built entirely from JSON-safe types.
// It panics on failure; callers reach it only with engine-constructed data.
func MustJCSString(v any) string {
	s, err := JCSString(v)
	if err != nil {
		panic(err)
	}
	return s
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return Digest(b), nil
}

// Digest returns the lower-case hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestText normalizes line endings to LF and the text to NFC before
// hashing, so that the same document edited on different platforms hashes
// identically.
func DigestText(text string) string {
	return Digest([]byte(NormalizeText(text)))
}

// NormalizeText converts CRLF and lone CR to LF and applies NFC.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}

// Equal reports whether a and b have the same canonical form.
func Equal(a, b any) (bool, error) {
	ca, err := JCS(a)
	if err != nil {
		return false, err
	}
	cb, err := JCS(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

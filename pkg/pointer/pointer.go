// Package pointer implements RFC 6901 JSON pointers: escaping, parsing,
// joining, resolution and the token ordering used for canonical sorting.
package pointer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Resolve when a pointer does not address a value.
var ErrNotFound = errors.New("pointer: not found")

// Keyed is implemented by ordered object types that are not plain maps.
type Keyed interface {
	Get(key string) (any, bool)
}

// Escape encodes a single reference token (~ → ~0, / → ~1).
func Escape(token string) string {
	if !strings.ContainsAny(token, "~/") {
		return token
	}
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// Unescape decodes a single reference token. Order matters: ~1 first.
func Unescape(token string) string {
	if !strings.Contains(token, "~") {
		return token
	}
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

// Join appends an unescaped token to parent.
func Join(parent, token string) string {
	return parent + "/" + Escape(token)
}

// JoinIndex appends an array index to parent.
func JoinIndex(parent string, index int) string {
	return parent + "/" + strconv.Itoa(index)
}

// Parse splits a pointer into unescaped tokens. The root pointer "" has no
// tokens. A non-empty pointer must start with '/'.
func Parse(ptr string) ([]string, error) {
	if ptr == "" {
		return nil, nil
	}
	if ptr[0] != '/' {
		return nil, fmt.Errorf("pointer: %q must start with '/'", ptr)
	}
	raw := strings.Split(ptr[1:], "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		tokens[i] = Unescape(t)
	}
	return tokens, nil
}

// Tokens is Parse without the error; malformed pointers yield a single
// token holding the raw text so they still order deterministically.
func Tokens(ptr string) []string {
	tokens, err := Parse(ptr)
	if err != nil {
		return []string{ptr}
	}
	return tokens
}

// Format builds a pointer from unescaped tokens.
func Format(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(Escape(t))
	}
	return b.String()
}

// Canonical re-encodes ptr so that equivalent spellings compare equal.
func Canonical(ptr string) (string, error) {
	tokens, err := Parse(ptr)
	if err != nil {
		return "", err
	}
	return Format(tokens), nil
}

// Parent returns the pointer of the enclosing value. The parent of the root
// is the root.
func Parent(ptr string) string {
	i := strings.LastIndexByte(ptr, '/')
	if i <= 0 {
		return ""
	}
	return ptr[:i]
}

// Last returns the final unescaped token, or "" for the root.
func Last(ptr string) string {
	i := strings.LastIndexByte(ptr, '/')
	if i < 0 {
		return ""
	}
	return Unescape(ptr[i+1:])
}

// HasPrefix reports whether ptr equals prefix or lies beneath it.
func HasPrefix(ptr, prefix string) bool {
	if prefix == "" {
		return true
	}
	return ptr == prefix || strings.HasPrefix(ptr, prefix+"/")
}

// Resolve walks doc along ptr. doc may be built from map[string]any,
// []any and Keyed values.
func Resolve(doc any, ptr string) (any, error) {
	tokens, err := Parse(ptr)
	if err != nil {
		return nil, err
	}
	cur := doc
	for i, tok := range tokens {
		switch node := cur.(type) {
		case Keyed:
			v, ok := node.Get(tok)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, Format(tokens[:i+1]))
			}
			cur = v
		case map[string]any:
			v, ok := node[tok]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, Format(tokens[:i+1]))
			}
			cur = v
		case []any:
			idx, convErr := strconv.Atoi(tok)
			if convErr != nil || idx < 0 || idx >= len(node) || (len(tok) > 1 && tok[0] == '0') {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, Format(tokens[:i+1]))
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, Format(tokens[:i+1]))
		}
	}
	return cur, nil
}

// Exists reports whether ptr resolves in doc.
func Exists(doc any, ptr string) bool {
	_, err := Resolve(doc, ptr)
	return err == nil
}

// CompareTokens orders token lists component-wise. Numeric tokens compare
// numerically and sort before non-numeric ones; a shorter list that is a
// prefix of a longer one sorts first.
func CompareTokens(a, b []string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := compareToken(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareToken(a, b string) int {
	ai, aErr := strconv.ParseUint(a, 10, 64)
	bi, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return strings.Compare(a, b) // "01" vs "1"
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

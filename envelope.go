package veil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultPrefix marks a stored value as an envelope.
const DefaultPrefix = "$E$"

// Envelope encodes ciphertext as prefix ++ payload. The payload is hex for
// textual columns and raw bytes for TypeBinary.
//
// Detection is syntactic: a plaintext that happens to start with the prefix
// is indistinguishable from an envelope.
type Envelope struct {
	Prefix string
}

// IsEncrypted reports whether v is a string or []byte beginning with the prefix.
// Any other input, including empty and short values, reports false.
func (e Envelope) IsEncrypted(v any) bool {
	if e.Prefix == "" {
		return false
	}
	switch s := v.(type) {
	case string:
		return strings.HasPrefix(s, e.Prefix)
	case []byte:
		return len(s) >= len(e.Prefix) && string(s[:len(e.Prefix)]) == e.Prefix
	default:
		return false
	}
}

// Encode wraps ciphertext for storage in a column of datatype dt.
func (e Envelope) Encode(ciphertext []byte, dt Datatype) string {
	if dt == TypeBinary {
		return e.Prefix + string(ciphertext)
	}
	return e.Prefix + hex.EncodeToString(ciphertext)
}

// Decode strips the prefix and returns the ciphertext.
func (e Envelope) Decode(envelope string, dt Datatype) ([]byte, error) {
	if !e.IsEncrypted(envelope) {
		return nil, fmt.Errorf("%w: missing prefix %q", ErrMalformedEnvelope, e.Prefix)
	}
	payload := envelope[len(e.Prefix):]
	if dt == TypeBinary {
		return []byte(payload), nil
	}
	ct, err := hex.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	return ct, nil
}

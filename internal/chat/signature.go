package chat

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Signature is an ed25519 signature over a message payload.
type Signature [ed25519.SignatureSize]byte

func ParseSignature(b []byte) (Signature, error) {
	var s Signature
	if len(b) != len(s) {
		return s, fmt.Errorf("signature length %d, want %d", len(b), len(s))
	}
	copy(s[:], b)
	return s, nil
}

func (s Signature) Bytes() []byte { return append([]byte(nil), s[:]...) }

func (s Signature) String() string { return base64.StdEncoding.EncodeToString(s[:8]) }

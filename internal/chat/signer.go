package chat

import (
	"crypto/ed25519"
	"time"

	"github.com/google/uuid"
)

// Signer is the client half of a signed chain, used by bots and tests.
type Signer struct {
	priv ed25519.PrivateKey
	link Link
}

func NewSigner(priv ed25519.PrivateKey, sender, session uuid.UUID) *Signer {
	return &Signer{priv: priv, link: Link{Sender: sender, Session: session}}
}

// Sign signs the next message in the chain and advances it.
func (s *Signer) Sign(content string, ts time.Time, salt int64, lastSeen []Signature) Signature {
	body := Body{Content: content, Timestamp: ts, Salt: salt, LastSeen: lastSeen}
	var sig Signature
	copy(sig[:], ed25519.Sign(s.priv, SignablePayload(s.link, body)))
	if n, ok := s.link.Next(); ok {
		s.link = n
	}
	return sig
}

func (s *Signer) Index() int32 { return s.link.Index }

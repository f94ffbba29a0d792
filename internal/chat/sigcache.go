package chat

import "github.com/gammazero/deque"

// NotFound is the Pack result for signatures the client does not hold.
const NotFound = -1

// SignatureCache mirrors the recency cache each client keeps so that
// recently seen signatures can be sent as a slot index. Slot 0 is the
// most recent push; entries that fall off the end are forgotten.
type SignatureCache struct {
	entries []*Signature
}

func NewSignatureCache(capacity int) *SignatureCache {
	return &SignatureCache{entries: make([]*Signature, capacity)}
}

func (c *SignatureCache) Pack(sig Signature) int {
	for i, e := range c.entries {
		if e != nil && *e == sig {
			return i
		}
	}
	return NotFound
}

func (c *SignatureCache) Unpack(id int) (Signature, bool) {
	if id < 0 || id >= len(c.entries) || c.entries[id] == nil {
		return Signature{}, false
	}
	return *c.entries[id], true
}

// Push records a message the client received: its last-seen list followed
// by its own signature (nil for unsigned messages).
func (c *SignatureCache) Push(lastSeen []Signature, sig *Signature) {
	var q deque.Deque[Signature]
	for _, s := range lastSeen {
		q.PushBack(s)
	}
	if sig != nil {
		q.PushBack(*sig)
	}
	c.push(&q)
}

func (c *SignatureCache) push(q *deque.Deque[Signature]) {
	incoming := make(map[Signature]struct{}, q.Len())
	for i := 0; i < q.Len(); i++ {
		incoming[q.At(i)] = struct{}{}
	}
	for i := 0; q.Len() > 0 && i < len(c.entries); i++ {
		old := c.entries[i]
		s := q.PopBack()
		c.entries[i] = &s
		if old != nil {
			if _, dup := incoming[*old]; !dup {
				q.PushFront(*old)
			}
		}
	}
}

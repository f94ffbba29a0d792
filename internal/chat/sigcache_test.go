package chat

import "testing"

func TestSignatureCache_PushMostRecentFirst(t *testing.T) {
	c := NewSignatureCache(4)
	a, b, s := sigN(1), sigN(2), sigN(3)
	c.Push([]Signature{a, b}, &s)

	if c.Pack(s) != 0 || c.Pack(b) != 1 || c.Pack(a) != 2 {
		t.Fatalf("order: s=%d b=%d a=%d", c.Pack(s), c.Pack(b), c.Pack(a))
	}
	if got, ok := c.Unpack(1); !ok || got != b {
		t.Fatalf("unpack 1: %v %v", got, ok)
	}
	if c.Pack(sigN(9)) != NotFound {
		t.Fatalf("unknown signature packed")
	}
	if _, ok := c.Unpack(3); ok {
		t.Fatalf("empty slot unpacked")
	}
	if _, ok := c.Unpack(-1); ok {
		t.Fatalf("negative slot unpacked")
	}
}

func TestSignatureCache_EvictsOldest(t *testing.T) {
	c := NewSignatureCache(3)
	for i := 1; i <= 3; i++ {
		s := sigN(i)
		c.Push(nil, &s)
	}
	// 3 is newest at slot 0; 1 is oldest at slot 2.
	if c.Pack(sigN(3)) != 0 || c.Pack(sigN(1)) != 2 {
		t.Fatalf("layout: %d %d", c.Pack(sigN(3)), c.Pack(sigN(1)))
	}
	s4 := sigN(4)
	c.Push(nil, &s4)
	if c.Pack(sigN(1)) != NotFound {
		t.Fatalf("oldest not evicted")
	}
	if c.Pack(s4) != 0 || c.Pack(sigN(2)) != 2 {
		t.Fatalf("after eviction: %d %d", c.Pack(s4), c.Pack(sigN(2)))
	}

	// Re-pushing a cached signature moves it to the front without duplicating it.
	s2 := sigN(2)
	c.Push(nil, &s2)
	if c.Pack(s2) != 0 || c.Pack(s4) != 1 || c.Pack(sigN(3)) != 2 {
		t.Fatalf("repush: %d %d %d", c.Pack(s2), c.Pack(s4), c.Pack(sigN(3)))
	}
}

package chat

import (
	"errors"
	"fmt"

	"github.com/gammazero/deque"
)

var ErrLastSeen = errors.New("last seen validation failed")

type trackedEntry struct {
	sig     Signature
	pending bool
}

// Window tracks the signatures sent to one client and validates the
// client's claims about which of them it has seen. The first capacity
// entries of the tracked list form the window the client acknowledges;
// everything after them is pending. Not safe for concurrent use.
type Window struct {
	capacity int
	tracked  deque.Deque[*trackedEntry]
	last     *Signature
}

func NewWindow(capacity int) *Window {
	w := &Window{capacity: capacity}
	for i := 0; i < capacity; i++ {
		w.tracked.PushBack(nil)
	}
	return w
}

func (w *Window) Capacity() int { return w.capacity }

// AddPending records a signature sent to the client. Consecutive repeats
// of the same signature are tracked once.
func (w *Window) AddPending(sig Signature) {
	if w.last != nil && *w.last == sig {
		return
	}
	w.tracked.PushBack(&trackedEntry{sig: sig, pending: true})
	s := sig
	w.last = &s
}

func (w *Window) Tracked() int { return w.tracked.Len() }

// Pending is the number of sent messages the client has not yet shifted
// into its window.
func (w *Window) Pending() int { return w.tracked.Len() - w.capacity }

// ApplyOffset drops offset entries from the front of the tracked list.
func (w *Window) ApplyOffset(offset int) error {
	n := w.Pending()
	if offset < 0 || offset > n {
		return fmt.Errorf("%w: advanced window by %d, at most %d allowed", ErrLastSeen, offset, n)
	}
	for i := 0; i < offset; i++ {
		w.tracked.PopFront()
	}
	return nil
}

// ApplyUpdate shifts the window by offset then reconciles acknowledged
// against it. It returns the acknowledged signatures, oldest first.
func (w *Window) ApplyUpdate(offset int, acknowledged []bool) ([]Signature, error) {
	if err := w.ApplyOffset(offset); err != nil {
		return nil, err
	}
	for i := w.capacity; i < len(acknowledged); i++ {
		if acknowledged[i] {
			return nil, fmt.Errorf("%w: acknowledged index %d outside window of %d", ErrLastSeen, i, w.capacity)
		}
	}
	var out []Signature
	for i := 0; i < w.capacity; i++ {
		e := w.tracked.At(i)
		if i < len(acknowledged) && acknowledged[i] {
			if e == nil {
				return nil, fmt.Errorf("%w: acknowledged unknown or ignored message at %d", ErrLastSeen, i)
			}
			w.tracked.Set(i, &trackedEntry{sig: e.sig})
			out = append(out, e.sig)
			continue
		}
		if e != nil && !e.pending {
			return nil, fmt.Errorf("%w: ignored previously acknowledged message at %d", ErrLastSeen, i)
		}
		w.tracked.Set(i, nil)
	}
	return out, nil
}

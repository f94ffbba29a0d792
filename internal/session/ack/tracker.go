package ack

import "fmt"

// Tracker keeps the highest block-change sequence the server applied this
// tick. Acks are cumulative, so one watermark is enough.
type Tracker struct {
	watermark int32
}

func NewTracker() *Tracker { return &Tracker{watermark: -1} }

// Record panics on a negative sequence: callers validate client input
// before it gets here.
func (t *Tracker) Record(seq int32) {
	if seq < 0 {
		panic(fmt.Sprintf("ack: negative sequence %d", seq))
	}
	if seq > t.watermark {
		t.watermark = seq
	}
}

// Flush hands the watermark to send, if one was recorded, and clears it.
func (t *Tracker) Flush(send func(seq int32)) bool {
	if t.watermark < 0 {
		return false
	}
	seq := t.watermark
	t.watermark = -1
	send(seq)
	return true
}

func (t *Tracker) Pending() (int32, bool) { return t.watermark, t.watermark >= 0 }

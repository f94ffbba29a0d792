package chat

// Allow is a fixed-window counter: at most max events per window ticks.
// It returns the updated window state and, when denied, the ticks left
// until the window resets.
func Allow(nowTick uint64, startTick uint64, count int, window uint64, max int) (newStart uint64, newCount int, ok bool, cooldownTicks uint64) {
	newStart = startTick
	newCount = count
	if window == 0 || max <= 0 {
		return newStart, newCount, true, 0
	}

	if nowTick-newStart >= window {
		newStart = nowTick
		newCount = 0
	}
	newCount++
	if newCount <= max {
		return newStart, newCount, true, 0
	}
	return newStart, newCount, false, (newStart + window) - nowTick
}

// Throttle counts chat actions per connection.
type Throttle struct {
	Window uint64
	Max    int

	start uint64
	count int
}

// Hit records one action at nowTick and reports whether the connection is
// still under the limit.
func (t *Throttle) Hit(nowTick uint64) bool {
	var ok bool
	t.start, t.count, ok, _ = Allow(nowTick, t.start, t.count, t.Window, t.Max)
	return ok
}

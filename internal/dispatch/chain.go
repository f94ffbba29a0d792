package dispatch

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

type link struct {
	ready <-chan struct{}
	apply func()
}

// Chain applies side effects in the order they were appended, each one
// only after its ready channel is closed and the previous one has run.
// One consumer goroutine per chain; closing drops whatever is queued.
type Chain struct {
	log *zap.Logger

	mu     sync.Mutex
	q      deque.Deque[link]
	closed bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewChain(log *zap.Logger) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Chain{
		log:  log,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go c.run()
	return c
}

// Append queues apply behind every earlier link. A nil ready runs as soon
// as its turn comes. Returns false once the chain is closed.
func (c *Chain) Append(ready <-chan struct{}, apply func()) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.q.PushBack(link{ready: ready, apply: apply})
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// Then appends a link that waits for f and hands its result to apply.
func Then[T any](c *Chain, f *Future[T], apply func(T, error)) bool {
	return c.Append(f.Done(), func() { apply(f.Result()) })
}

// Close stops the chain. Queued links are dropped; a link already running
// finishes.
func (c *Chain) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.q.Clear()
	c.mu.Unlock()
	close(c.quit)
}

// Stopped is closed once the consumer goroutine has exited.
func (c *Chain) Stopped() <-chan struct{} { return c.done }

func (c *Chain) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Len()
}

func (c *Chain) run() {
	defer close(c.done)
	for {
		l, ok := c.next()
		if !ok {
			return
		}
		if l.ready != nil {
			select {
			case <-l.ready:
			case <-c.quit:
				return
			}
		}
		if c.isClosed() {
			return
		}
		c.apply(l)
	}
}

func (c *Chain) next() (link, bool) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return link{}, false
		}
		if c.q.Len() > 0 {
			l := c.q.PopFront()
			c.mu.Unlock()
			return l, true
		}
		c.mu.Unlock()

		select {
		case <-c.wake:
		case <-c.quit:
		}
	}
}

func (c *Chain) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Chain) apply(l link) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("dispatch link failed", zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()
	l.apply()
}

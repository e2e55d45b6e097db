package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const DefaultInterval = time.Second

type Remaining struct {
	Left    time.Duration
	Minutes int
	Seconds int
	Expired bool
	// Idle means no end time is set yet.
	Idle bool
}

// String renders MM:SS.
func (r Remaining) String() string {
	return fmt.Sprintf("%02d:%02d", r.Minutes, r.Seconds)
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// Controller derives remaining time from an absolute end instant. It holds no
// persistent state: a fresh Controller given the same end reports the same
// remaining time.
//
// Invariants, per end instant:
//   - remaining time never increases, even if the wall clock steps back;
//   - Expired flips from false to true once and stays true.
type Controller struct {
	mu       sync.Mutex
	now      func() time.Time
	interval time.Duration

	end       time.Time
	active    bool
	observed  bool
	last      time.Duration
	expired   bool
	expiredCh chan struct{}
	changed   chan struct{}
}

func New(opts ...Option) *Controller {
	c := &Controller{
		now:       time.Now,
		interval:  DefaultInterval,
		expiredCh: make(chan struct{}),
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEnd starts counting towards end. Any Run loop bound to a previous end
// returns.
func (c *Controller) SetEnd(end time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active && c.end.Equal(end) {
		return
	}
	c.reset()
	c.end = end
	c.active = true
}

// Clear returns the controller to idle.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.reset()
}

func (c *Controller) reset() {
	close(c.changed)
	c.changed = make(chan struct{})
	c.expiredCh = make(chan struct{})
	c.end = time.Time{}
	c.active = false
	c.observed = false
	c.last = 0
	c.expired = false
}

func (c *Controller) End() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.end, c.active
}

func (c *Controller) Remaining() Remaining {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Controller) remainingLocked() Remaining {
	if !c.active {
		return Remaining{Idle: true}
	}

	left := c.end.Sub(c.now())
	if left < 0 {
		left = 0
	}
	if c.observed && left > c.last {
		left = c.last
	}
	c.observed = true
	c.last = left

	if left == 0 && !c.expired {
		c.expired = true
		close(c.expiredCh)
	}

	return Remaining{
		Left:    left,
		Minutes: int(left / time.Minute),
		Seconds: int((left % time.Minute) / time.Second),
		Expired: c.expired,
	}
}

// Expired is closed once expiry has been observed for the current end.
func (c *Controller) Expired() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiredCh
}

// Run calls onTick immediately and then on every interval until ctx is done,
// the end instant changes, or expiry has been reported.
func (c *Controller) Run(ctx context.Context, onTick func(Remaining)) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	changed := c.changed
	interval := c.interval
	first := c.remainingLocked()
	c.mu.Unlock()

	onTick(first)
	if first.Expired {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			return
		case <-ticker.C:
			c.mu.Lock()
			if changed != c.changed {
				c.mu.Unlock()
				return
			}
			remaining := c.remainingLocked()
			c.mu.Unlock()

			onTick(remaining)
			if remaining.Expired {
				return
			}
		}
	}
}

package session

import (
	"fmt"
	"sync"
	"time"
)

// FormatRemaining renders the time left until end using the coarsest non-zero units.
func FormatRemaining(end *time.Time, now time.Time) string {
	if end == nil {
		return ""
	}

	diff := end.Sub(now)
	if diff <= 0 {
		return "Ended"
	}

	total := int64(diff / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh remaining", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm remaining", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds remaining", minutes, seconds)
	default:
		return fmt.Sprintf("%ds remaining", seconds)
	}
}

// Countdown recomputes the remaining-time string on a fixed tick.
type Countdown struct {
	mu     sync.Mutex
	tick   time.Duration
	now    func() time.Time
	onTick func(string)
	end    *time.Time
	text   string
	stop   chan struct{}
	done   chan struct{}
}

// NewCountdown builds a stopped countdown. onTick may be nil.
func NewCountdown(tick time.Duration, onTick func(string)) *Countdown {
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{
		tick:   tick,
		now:    time.Now,
		onTick: onTick,
	}
}

// Reset replaces the target instant. The previous ticker is stopped before the
// new one starts; a nil end clears the text and leaves the countdown idle.
func (c *Countdown) Reset(end *time.Time) {
	c.Stop()

	c.mu.Lock()
	if end != nil {
		copied := *end
		end = &copied
	}
	c.end = end
	c.text = FormatRemaining(end, c.now())
	text := c.text
	if end == nil {
		c.mu.Unlock()
		c.emit(text)
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop = stop
	c.done = done
	c.mu.Unlock()

	c.emit(text)
	go c.run(stop, done)
}

// Stop halts the ticker and waits for it to exit.
func (c *Countdown) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Text returns the latest rendered string.
func (c *Countdown) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// End returns the current target instant.
func (c *Countdown) End() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.end
}

func (c *Countdown) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			text := FormatRemaining(c.end, c.now())
			changed := text != c.text
			c.text = text
			c.mu.Unlock()

			if changed {
				c.emit(text)
			}
			if text == "Ended" {
				return
			}
		}
	}
}

func (c *Countdown) emit(text string) {
	if c.onTick != nil {
		c.onTick(text)
	}
}

package checkoutclient

import (
	"context"
	"time"
)

// Countdown shows the time left on a payment session. It is advisory only:
// a zero countdown does not mean the server has expired the batch.
type Countdown struct {
	ExpiresAt time.Time
	Every     time.Duration

	now func() time.Time
}

func NewCountdown(expiresAt time.Time) *Countdown {
	return &Countdown{ExpiresAt: expiresAt, Every: time.Second, now: time.Now}
}

func (c *Countdown) Remaining() time.Duration {
	left := c.ExpiresAt.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

func (c *Countdown) Expired() bool {
	return c.Remaining() == 0
}

// Run calls tick with the remaining time on every interval until the local
// clock passes ExpiresAt or ctx ends. It returns true when time ran out.
func (c *Countdown) Run(ctx context.Context, tick func(remaining time.Duration)) bool {
	every := c.Every
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		left := c.Remaining()
		tick(left)
		if left == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
	}
}

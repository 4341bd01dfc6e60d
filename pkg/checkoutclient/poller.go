package checkoutclient

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxDuration = 30 * time.Minute
)

var (
	ErrExpired  = errors.New("payment session expired")
	ErrRejected = errors.New("order rejected")
	ErrTimeout  = errors.New("gave up waiting for payment")
)

type StatusChecker interface {
	Status(ctx context.Context, orderIDs []string) (StatusResponse, error)
}

// Poller asks the server for the batch status until it settles. The server
// is the only authority on expiry; the poller never decides it locally.
type Poller struct {
	Checker     StatusChecker
	Interval    time.Duration
	MaxDuration time.Duration

	// OnUpdate, when set, sees every answer including pending ones.
	OnUpdate func(StatusResponse)
}

// Wait returns the final status. A completed batch returns a nil error;
// expired and cancelled batches return ErrExpired and ErrRejected.
// Transient API failures are retried on the next tick.
func (p *Poller) Wait(ctx context.Context, orderIDs []string) (StatusResponse, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	limit := p.MaxDuration
	if limit <= 0 {
		limit = DefaultMaxDuration
	}

	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last StatusResponse
	for {
		res, err := p.Checker.Status(ctx, orderIDs)
		switch {
		case err == nil:
			last = res
			if p.OnUpdate != nil {
				p.OnUpdate(res)
			}
			if done, err := settled(res); done {
				return res, err
			}
		case !retryable(err):
			return last, err
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, ErrTimeout
		case <-ticker.C:
		}
	}
}

func settled(res StatusResponse) (bool, error) {
	switch res.Status {
	case "completed":
		return true, nil
	case "expired":
		return true, ErrExpired
	case "cancelled":
		return true, ErrRejected
	}
	return false, nil
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

package checkoutclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checkout/status", r.URL.Path)
		assert.Equal(t, "b1", r.Header.Get(headerUserID))

		var body struct {
			OrderIDs []string `json:"orderIds"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"o1"}, body.OrderIDs)

		_, _ = w.Write([]byte(`{"status":"pending","reference":"PAY-1","orders":[{"id":"o1","status":"pending"}],"expiresAt":"2026-03-01T12:10:00Z"}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL+"/", WithUser("b1")).Status(context.Background(), []string{"o1"})
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Status)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, 10, res.ExpiresAt.Minute())
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_ARGUMENT","reason":"validation_error","message":"bad ids"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Status(context.Background(), nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation_error", apiErr.Reason)
	assert.False(t, apiErr.Temporary())
}

func TestClientSweeps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ops", r.Header.Get(headerAdminID))
		switch r.URL.Path {
		case "/api/admin/deliveries/process":
			_, _ = w.Write([]byte(`{"processed":4}`))
		case "/api/admin/payments/expire":
			_, _ = w.Write([]byte(`{"expired":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithAdmin("ops"))
	n, err := c.ProcessDeliveries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = c.ExpirePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type scripted struct {
	mu      sync.Mutex
	answers []StatusResponse
	errs    []error
	calls   int
}

func (s *scripted) Status(context.Context, []string) (StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return StatusResponse{}, s.errs[i]
	}
	if i >= len(s.answers) {
		return s.answers[len(s.answers)-1], nil
	}
	return s.answers[i], nil
}

func TestPollerWait(t *testing.T) {
	pending := StatusResponse{Status: "pending"}

	t.Run("completes", func(t *testing.T) {
		src := &scripted{answers: []StatusResponse{pending, pending, {Status: "completed"}}}
		var seen int
		p := &Poller{Checker: src, Interval: time.Millisecond, OnUpdate: func(StatusResponse) { seen++ }}

		res, err := p.Wait(context.Background(), []string{"o1"})
		require.NoError(t, err)
		assert.Equal(t, "completed", res.Status)
		assert.Equal(t, 3, seen)
	})

	t.Run("expired", func(t *testing.T) {
		src := &scripted{answers: []StatusResponse{pending, {Status: "expired"}}}
		_, err := (&Poller{Checker: src, Interval: time.Millisecond}).Wait(context.Background(), nil)
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("rejected", func(t *testing.T) {
		src := &scripted{answers: []StatusResponse{{Status: "cancelled"}}}
		_, err := (&Poller{Checker: src, Interval: time.Millisecond}).Wait(context.Background(), nil)
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		src := &scripted{
			answers: []StatusResponse{pending, pending, {Status: "completed"}},
			errs:    []error{nil, &APIError{StatusCode: http.StatusServiceUnavailable}},
		}
		_, err := (&Poller{Checker: src, Interval: time.Millisecond}).Wait(context.Background(), nil)
		require.NoError(t, err)
	})

	t.Run("stops on client errors", func(t *testing.T) {
		src := &scripted{
			answers: []StatusResponse{pending},
			errs:    []error{&APIError{StatusCode: http.StatusBadRequest}},
		}
		_, err := (&Poller{Checker: src, Interval: time.Millisecond}).Wait(context.Background(), nil)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 1, src.calls)
	})

	t.Run("gives up after max duration", func(t *testing.T) {
		src := &scripted{answers: []StatusResponse{pending}}
		res, err := (&Poller{Checker: src, Interval: 5 * time.Millisecond, MaxDuration: 30 * time.Millisecond}).Wait(context.Background(), nil)
		require.ErrorIs(t, err, ErrTimeout)
		assert.Equal(t, "pending", res.Status)
	})
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCountdown(now.Add(3 * time.Second))
	c.now = func() time.Time { return now }

	assert.Equal(t, 3*time.Second, c.Remaining())
	assert.False(t, c.Expired())

	c.Every = time.Millisecond
	var ticks []time.Duration
	ranOut := c.Run(context.Background(), func(left time.Duration) {
		ticks = append(ticks, left)
		now = now.Add(time.Second)
	})
	assert.True(t, ranOut)
	assert.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second, time.Second, 0}, ticks)
	assert.True(t, c.Expired())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c2 := NewCountdown(time.Now().Add(time.Hour))
	assert.False(t, c2.Run(ctx, func(time.Duration) {}))
}

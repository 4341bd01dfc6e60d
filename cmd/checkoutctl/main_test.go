package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSweepCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ops", r.Header.Get("X-Admin-ID"))
		switch r.URL.Path {
		case "/api/admin/deliveries/process":
			_, _ = w.Write([]byte(`{"processed":2}`))
		case "/api/admin/payments/expire":
			_, _ = w.Write([]byte(`{"expired":5}`))
		}
	}))
	defer srv.Close()

	out, err := run(t, "--url", srv.URL, "--admin", "ops", "deliveries", "process")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 2 deliveries")

	out, err = run(t, "--url", srv.URL, "--admin", "ops", "payments", "expire")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 5 orders")
}

func TestWatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			_, _ = w.Write([]byte(`{"status":"pending","reference":"PAY-1","orders":[{"id":"o1","status":"pending"}],"expiresAt":"2099-01-01T00:00:00Z"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"expired","reference":"PAY-1","orders":[{"id":"o1","status":"cancelled"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "--url", srv.URL, "--user", "b1", "watch", "--order", "o1", "--interval", "1ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAY-1 expired")
	assert.Contains(t, out, "left)")

	_, err = run(t, "--url", srv.URL, "--user", "b1", "watch")
	require.Error(t, err)
}

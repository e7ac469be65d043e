package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "1", r.Header.Get("X-Extra"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := DoGet(context.Background(), srv.Client(), srv.URL, map[string]string{"X-Extra": "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDoGetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := DoGet(context.Background(), srv.Client(), srv.URL, nil)
	require.Error(t, err)

	var he *ErrHTTP
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
	assert.Contains(t, he.Body, "not found")
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{400, true},
		{401, true},
		{403, true},
		{404, true},
		{429, false}, // rate limiting is retryable
		{500, false},
		{503, false},
	}
	for _, tt := range tests {
		err := &ErrHTTP{StatusCode: tt.status}
		assert.Equal(t, tt.want, IsClientError(err), "status %d", tt.status)
	}
	assert.False(t, IsClientError(errors.New("plain error")))
	assert.False(t, IsClientError(nil))
}

func TestDoGetRetrySucceedsAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	body, err := DoGetRetry(context.Background(), srv.Client(), cfg, srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoGetRetryNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	_, err := DoGetRetry(context.Background(), srv.Client(), cfg, srv.URL, nil)
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Equal(t, int32(1), calls.Load(), "client errors must not be retried")
}

func TestDoGetRetryExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	_, err := DoGetRetry(context.Background(), srv.Client(), cfg, srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, int32(3), calls.Load())
}

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apperrors"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate func(*Config)) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{URL: srv.URL, APIKey: "secret", Timeout: time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewHTTPClient(cfg, nil)
	require.NoError(t, err)
	return c
}

var rankReq = apptype.RemoteRequest{
	EntityID:   "u1",
	EntityType: apptype.EntityUser,
	Types:      []apptype.EntityType{apptype.EntityProject},
	Limit:      5,
}

func TestFetchNormalizes(t *testing.T) {
	var got apptype.RemoteRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[
			{"id":"p1","type":"project","score":0.91,"reason":"trending","metadata":{"name":"Apollo","tags":["space"]}},
			{"id":"p2","type":"project","score":1.7,"metadata":{}},
			{"id":"p3","type":"project","score":-0.2}
		]`))
	}, nil)

	out, err := c.Fetch(context.Background(), rankReq)
	require.NoError(t, err)
	assert.Equal(t, rankReq, got)
	require.Len(t, out, 3)

	assert.Equal(t, "Apollo", out[0].Label)
	assert.InDelta(t, 0.91, out[0].Confidence, 1e-9)
	assert.Equal(t, apptype.PriorityHigh, out[0].Priority)
	assert.Equal(t, []string{"space"}, out[0].Tags)
	assert.Equal(t, "trending", out[0].Reason)

	assert.Equal(t, "p2", out[1].Label, "label falls back to id")
	assert.Equal(t, 1.0, out[1].Confidence)
	assert.Equal(t, 0.0, out[2].Confidence)
	assert.Equal(t, apptype.PriorityLow, out[2].Priority)
	assert.Equal(t, "closed", c.State())
}

func TestFetchWrappedShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"suggestions":[{"id":"t1","type":"team","score":0.5}]}`))
	}, nil)
	out, err := c.Fetch(context.Background(), rankReq)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, apptype.PriorityMedium, out[0].Priority)
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name  string
		h     http.HandlerFunc
		check func(t *testing.T, err error)
	}{
		{
			name: "server error with message",
			h: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"model offline"}`))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
				assert.Contains(t, err.Error(), "model offline")
			},
		},
		{
			name: "not json",
			h: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMalformed) },
		},
		{
			name: "missing score",
			h: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[{"id":"x","type":"user"}]`))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMalformed) },
		},
		{
			name: "missing id",
			h: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[{"type":"user","score":0.3}]`))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMalformed) },
		},
		{
			name: "object without suggestions",
			h: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"items":[]}`))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMalformed) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h, nil)
			out, err := c.Fetch(context.Background(), rankReq)
			require.Error(t, err)
			assert.Nil(t, out)
			tt.check(t, err)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	defer close(release)

	start := time.Now()
	_, err := c.Fetch(context.Background(), rankReq)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBreakerOpensAndShortCircuits(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.Breaker = BreakerConfig{MaxRequests: 1, Interval: time.Minute, OpenTimeout: time.Minute, MinRequests: 3, FailureRatio: 0.5}
	})

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), rankReq)
		require.Error(t, err)
	}
	assert.Equal(t, "open", c.State())

	_, err := c.Fetch(context.Background(), rankReq)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker performs no I/O")
}

func TestNewHTTPClientRequiresURL(t *testing.T) {
	_, err := NewHTTPClient(Config{}, nil)
	assert.Error(t, err)
}

func TestFeedbackSink(t *testing.T) {
	var body map[string]any
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink, err := NewFeedbackSink(srv.URL, time.Second, nil)
	require.NoError(t, err)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err = sink.PersistFeedback(context.Background(), apptype.FeedbackEvent{
		ID: "ev-1", EntityID: "u1", SuggestionID: "p1", IsHelpful: true, Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "ev-1", key)
	assert.Equal(t, "u1", body["entityId"])
	assert.Equal(t, "p1", body["suggestionId"])
	assert.Equal(t, true, body["isHelpful"])
	assert.Equal(t, "2025-03-01T12:00:00Z", body["timestamp"])
	assert.NotContains(t, body, "id")
}

func TestFeedbackSinkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink, err := NewFeedbackSink(srv.URL, time.Second, nil)
	require.NoError(t, err)
	err = sink.PersistFeedback(context.Background(), apptype.FeedbackEvent{EntityID: "u1", SuggestionID: "p1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

// Package remote talks to the optional external ranking backend and to the
// HTTP feedback store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apperrors"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/scoring"
)

// ErrMalformed marks a response that decoded but violates the wire contract.
var ErrMalformed = errors.New("malformed remote payload")

// ErrUnavailable is returned without any I/O while the breaker is open.
var ErrUnavailable = errors.New("remote ranking unavailable")

const maxBodyBytes = 4 << 20

// BreakerConfig tunes the circuit breaker around remote calls.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig trips after 60% failures over at least five calls.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		OpenTimeout:  30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// Config configures an HTTPClient.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Breaker BreakerConfig
	// HTTP overrides the transport client; nil uses a fresh http.Client.
	HTTP *http.Client
}

// HTTPClient fetches ranked suggestions from a remote endpoint. Each Fetch is
// one attempt bounded by the configured timeout. There are no retries.
type HTTPClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewHTTPClient validates cfg and builds a client.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	c := &HTTPClient{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    hc,
		logger:  logger,
	}
	c.cb = newBreaker("remote-ranking", cfg.Breaker, logger)
	return c, nil
}

func newBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A caller that gave up says nothing about the backend's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// State returns the breaker state: "closed", "half-open" or "open".
func (c *HTTPClient) State() string { return c.cb.State().String() }

// Fetch asks the remote backend to rank candidates for req.EntityID. The
// result is normalized into suggestions; any failure is returned as an error
// so the caller can fall back.
func (c *HTTPClient) Fetch(ctx context.Context, req apptype.RemoteRequest) ([]apptype.Suggestion, error) {
	out, err := c.cb.Execute(func() (any, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.([]apptype.Suggestion), nil
}

func (c *HTTPClient) do(ctx context.Context, body apptype.RemoteRequest) ([]apptype.Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("remote ranking timed out", err)
		}
		return nil, apperrors.NewExternalError("remote ranking request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&e)
		if e.Error != "" {
			return nil, apperrors.NewExternalError(fmt.Sprintf("remote ranking error: %s", e.Error), nil)
		}
		return nil, apperrors.NewExternalError(fmt.Sprintf("remote ranking http status: %s", resp.Status), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("remote ranking timed out", err)
		}
		return nil, apperrors.NewExternalError("read remote ranking body", err)
	}
	items, err := decodeItems(raw)
	if err != nil {
		return nil, err
	}
	return Normalize(items)
}

// decodeItems accepts a bare array or an object wrapping it under "suggestions".
func decodeItems(raw []byte) ([]apptype.RemoteSuggestion, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	var items []apptype.RemoteSuggestion
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return items, nil
	}
	var wrapped struct {
		Suggestions *[]apptype.RemoteSuggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if wrapped.Suggestions == nil {
		return nil, fmt.Errorf("%w: missing suggestions", ErrMalformed)
	}
	return *wrapped.Suggestions, nil
}

// Normalize maps wire items onto suggestions. Scores are clamped to [0,1];
// an item without an id or a numeric score makes the whole payload malformed.
func Normalize(items []apptype.RemoteSuggestion) ([]apptype.Suggestion, error) {
	out := make([]apptype.Suggestion, 0, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrMalformed, i)
		}
		if it.Score == nil || math.IsNaN(*it.Score) || math.IsInf(*it.Score, 0) {
			return nil, fmt.Errorf("%w: item %q has no usable score", ErrMalformed, it.ID)
		}
		conf := scoring.Clamp(*it.Score)
		label := it.Metadata.Name
		if label == "" {
			label = it.ID
		}
		var tags []string
		if len(it.Metadata.Tags) > 0 {
			tags = append([]string(nil), it.Metadata.Tags...)
		}
		out = append(out, apptype.Suggestion{
			ID:         it.ID,
			Type:       it.Type,
			Label:      label,
			Confidence: conf,
			Priority:   scoring.PriorityFor(conf),
			Reason:     it.Reason,
			Tags:       tags,
		})
	}
	return out, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

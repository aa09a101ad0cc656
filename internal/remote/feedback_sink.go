package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apperrors"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// FeedbackSink posts feedback events to a persistent feedback endpoint.
type FeedbackSink struct {
	url  string
	http *http.Client
}

// NewFeedbackSink returns a sink posting to url with a per-request timeout.
func NewFeedbackSink(url string, timeout time.Duration, hc *http.Client) (*FeedbackSink, error) {
	if url == "" {
		return nil, fmt.Errorf("feedback url is required")
	}
	if hc == nil {
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &FeedbackSink{url: url, http: hc}, nil
}

type feedbackBody struct {
	EntityID     string    `json:"entityId"`
	SuggestionID string    `json:"suggestionId"`
	IsHelpful    bool      `json:"isHelpful"`
	Timestamp    time.Time `json:"timestamp"`
}

// PersistFeedback sends one event. The event id travels as an idempotency key.
func (s *FeedbackSink) PersistFeedback(ctx context.Context, ev apptype.FeedbackEvent) error {
	payload, err := json.Marshal(feedbackBody{
		EntityID:     ev.EntityID,
		SuggestionID: ev.SuggestionID,
		IsHelpful:    ev.IsHelpful,
		Timestamp:    ev.Timestamp.UTC(),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if ev.ID != "" {
		req.Header.Set("Idempotency-Key", ev.ID)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return apperrors.NewExternalError("feedback request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return apperrors.NewExternalError(fmt.Sprintf("feedback store error: %s", e.Error), nil)
		}
		return apperrors.NewExternalError(fmt.Sprintf("feedback store http status: %s", resp.Status), nil)
	}
	return nil
}

package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apperrors"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/store"
)

type recordingSink struct {
	mu           sync.Mutex
	events       []apptype.FeedbackEvent
	interactions []apptype.Interaction
	err          error
	block        chan struct{}
}

func (s *recordingSink) PersistFeedback(ctx context.Context, ev apptype.FeedbackEvent) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) PersistInteraction(ctx context.Context, ix apptype.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, ix)
	return s.err
}

func TestSubmitUpdatesStoreBeforeReturning(t *testing.T) {
	fs := store.NewFeedbackStore()
	sink := &recordingSink{block: make(chan struct{})}
	ing := NewIngestor(fs, WithSink(sink))

	ev, err := ing.Submit("u1", "p1", true)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, fs.Counts("p1").Helpful, "local update is synchronous even while persistence blocks")

	close(sink.block)
	ing.Wait()
	require.Len(t, sink.events, 1)
	assert.Equal(t, ev, sink.events[0])
}

func TestSubmitValidation(t *testing.T) {
	ing := NewIngestor(store.NewFeedbackStore())
	_, err := ing.Submit("", "p1", true)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	_, err = ing.Submit("u1", "", true)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestPersistenceFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fs := store.NewFeedbackStore()
	sink := &recordingSink{err: errors.New("disk full")}
	ing := NewIngestor(fs, WithSink(sink), WithLogger(zap.New(core)))

	_, err := ing.Submit("u1", "p1", false)
	require.NoError(t, err)
	ing.Wait()

	assert.Equal(t, 1, fs.Counts("p1").NotHelpful)
	require.Equal(t, 1, logs.FilterMessage("feedback persistence failed").Len())
	assert.Len(t, sink.events, 1, "no retry")
}

func TestPersistenceTimeout(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	core, logs := observer.New(zap.WarnLevel)
	ing := NewIngestor(store.NewFeedbackStore(), WithSink(sink), WithTimeout(20*time.Millisecond), WithLogger(zap.New(core)))

	_, err := ing.Submit("u1", "p1", true)
	require.NoError(t, err)
	ing.Wait()
	assert.Equal(t, 1, logs.Len())
}

func TestForwardInteraction(t *testing.T) {
	sink := &recordingSink{}
	ing := NewIngestor(store.NewFeedbackStore(), WithInteractionSink(sink))
	ing.ForwardInteraction(apptype.Interaction{Source: "u1", Target: "p1"})
	ing.Wait()
	assert.Equal(t, []apptype.Interaction{{Source: "u1", Target: "p1"}}, sink.interactions)

	// no sink configured is a no-op
	NewIngestor(store.NewFeedbackStore()).ForwardInteraction(apptype.Interaction{Source: "a", Target: "b"})
}

func TestCloseWaitsAndStopsForwarding(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	ing := NewIngestor(store.NewFeedbackStore(), WithSink(sink))
	_, _ = ing.Submit("u1", "p1", true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ing.Close(ctx), context.DeadlineExceeded)

	close(sink.block)
	require.NoError(t, ing.Close(context.Background()))
	_, err := ing.Submit("u1", "p2", true)
	require.NoError(t, err)
	ing.Wait()
	assert.Len(t, sink.events, 1)
}

func TestSubmitRacingCloseNeverWritesAfterClose(t *testing.T) {
	sink := &recordingSink{}
	ing := NewIngestor(store.NewFeedbackStore(), WithSink(sink))

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				_, _ = ing.Submit("u1", "p1", true)
			}
		}()
	}
	require.NoError(t, ing.Close(context.Background()))

	sink.mu.Lock()
	persisted := len(sink.events)
	sink.mu.Unlock()

	wg.Wait()
	ing.Wait()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, persisted, len(sink.events), "no write starts once Close has returned")
}

package store

import (
	"sync"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// FeedbackStore keeps helpful/not-helpful counters per suggestion target.
type FeedbackStore struct {
	mu     sync.RWMutex
	counts map[string]apptype.FeedbackCounts
}

// NewFeedbackStore returns an empty store.
func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{counts: make(map[string]apptype.FeedbackCounts)}
}

// Record increments the matching counter for targetID.
func (f *FeedbackStore) Record(targetID string, helpful bool) {
	f.mu.Lock()
	c := f.counts[targetID]
	if helpful {
		c.Helpful++
	} else {
		c.NotHelpful++
	}
	f.counts[targetID] = c
	f.mu.Unlock()
}

// Ratio returns helpful/(helpful+notHelpful); ok is false when no feedback exists.
func (f *FeedbackStore) Ratio(targetID string) (ratio float64, ok bool) {
	c := f.Counts(targetID)
	total := c.Total()
	if total == 0 {
		return 0, false
	}
	return float64(c.Helpful) / float64(total), true
}

// Counts returns the raw counters for targetID.
func (f *FeedbackStore) Counts(targetID string) apptype.FeedbackCounts {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.counts[targetID]
}

// Restore adds persisted totals to the in-memory counters.
func (f *FeedbackStore) Restore(totals map[string]apptype.FeedbackCounts) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range totals {
		cur := f.counts[id]
		cur.Helpful += c.Helpful
		cur.NotHelpful += c.NotHelpful
		f.counts[id] = cur
	}
}

// Len returns the number of targets with feedback.
func (f *FeedbackStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.counts)
}

package store

import (
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// InteractionLedger records which targets a source has acted on. Presence only.
type InteractionLedger struct {
	mu   sync.RWMutex
	seen map[string]map[string]struct{}
}

// NewInteractionLedger returns an empty ledger.
func NewInteractionLedger() *InteractionLedger {
	return &InteractionLedger{seen: make(map[string]map[string]struct{})}
}

// Record marks (source, target); it reports whether the pair was new.
func (l *InteractionLedger) Record(source, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.seen[source]
	if !ok {
		set = make(map[string]struct{})
		l.seen[source] = set
	}
	if _, dup := set[target]; dup {
		return false
	}
	set[target] = struct{}{}
	return true
}

// Has reports whether source has interacted with target.
func (l *InteractionLedger) Has(source, target string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[source][target]
	return ok
}

// All returns every recorded pair ordered by source then target.
func (l *InteractionLedger) All() []apptype.Interaction {
	l.mu.RLock()
	var out []apptype.Interaction
	for s, targets := range l.seen {
		for t := range targets {
			out = append(out, apptype.Interaction{Source: s, Target: t})
		}
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

package store

import (
	"sort"
	"sync"
)

// AttributeIndex maps a tag to the set of entity ids carrying it.
type AttributeIndex struct {
	mu       sync.RWMutex
	postings map[string]map[string]struct{}
}

// NewAttributeIndex returns an empty index.
func NewAttributeIndex() *AttributeIndex {
	return &AttributeIndex{postings: make(map[string]map[string]struct{})}
}

// Index adds entityID to the posting set of every tag.
func (x *AttributeIndex) Index(entityID string, tags []string) {
	if entityID == "" || len(tags) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		set, ok := x.postings[tag]
		if !ok {
			set = make(map[string]struct{})
			x.postings[tag] = set
		}
		set[entityID] = struct{}{}
	}
}

// ByTag returns the ids carrying tag in ascending order.
func (x *AttributeIndex) ByTag(tag string) []string {
	x.mu.RLock()
	set := x.postings[tag]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	x.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Tags returns the number of distinct tags indexed.
func (x *AttributeIndex) Tags() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.postings)
}

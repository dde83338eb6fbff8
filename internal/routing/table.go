// Package routing implements the longest-prefix-match routing table
// (spec.md §4.2). Label matching operates on dot-separated labels, not raw
// substrings.
package routing

import (
	"sync"

	"github.com/alldoizcode/connector/internal/address"
)

// Route is a configured (prefix, next-hop, priority) triple.
type Route struct {
	Prefix   string
	NextHop  string
	Priority int
}

type entry struct {
	route    Route
	inserted uint64
}

// Table is a single-writer, many-reader routing table. Readers are never
// blocked by other readers; a single RWMutex guards the small in-memory
// slice, mirroring the teacher's single-writer/many-reader admin-path
// convention for shared state.
type Table struct {
	mu      sync.RWMutex
	entries []entry
	seq     uint64
}

// New creates an empty routing table.
func New() *Table {
	return &Table{}
}

// Add inserts or updates a route. It is idempotent by (prefix, nextHop): a
// second Add for the same pair updates the priority rather than duplicating
// the entry.
func (t *Table) Add(prefix, nextHop string, priority int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i].route.Prefix == prefix && t.entries[i].route.NextHop == nextHop {
			t.entries[i].route.Priority = priority
			return
		}
	}
	t.seq++
	t.entries = append(t.entries, entry{route: Route{Prefix: prefix, NextHop: nextHop, Priority: priority}, inserted: t.seq})
}

// Remove deletes all routes configured for prefix. It reports whether any
// route was removed.
func (t *Table) Remove(prefix string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := false
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.route.Prefix == prefix {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
	return removed
}

// Lookup returns the next-hop peer id for destination using longest-prefix
// match. Ties are broken by priority ascending, then by insertion order.
// It returns ("", false) when no configured prefix matches.
func (t *Table) Lookup(destination string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best *entry
	bestLabels := -1
	for i := range t.entries {
		e := &t.entries[i]
		if !address.HasPrefix(destination, e.route.Prefix) {
			continue
		}
		labels := len(address.Labels(e.route.Prefix))
		switch {
		case labels > bestLabels:
			best = e
			bestLabels = labels
		case labels == bestLabels:
			if e.route.Priority < best.route.Priority {
				best = e
			} else if e.route.Priority == best.route.Priority && e.inserted < best.inserted {
				best = e
			}
		}
	}
	if best == nil {
		return "", false
	}
	return best.route.NextHop, true
}

// Package subscription implements the Subscription Manager (spec.md §4.6):
// per-peer event-filter registration and conjunctive filter matching for
// push delivery of application events over the messaging gateway.
package subscription

import (
	"sync"

	"github.com/alldoizcode/connector/internal/errs"
)

// Event is an application-level event eligible for push delivery. Its Tags
// map groups single-letter tag names ("e", "p", ...) to the list of values
// present under that tag, mirroring the teacher's generic tag-list shape.
type Event struct {
	ID        string
	Author    string
	Kind      int
	CreatedAt int64
	Tags      map[string][]string
}

// Filter is a subscription's match predicate. Every non-nil/non-zero field
// must match for the filter to match (conjunctive); a filter with every
// field unset matches every event.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Since   *int64
	Until   *int64
	ETags   []string // "#e" predicate
	PTags   []string // "#p" predicate
}

// Matches reports whether e satisfies every predicate set on f.
func (f Filter) Matches(e Event) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, e.Author) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	if len(f.ETags) > 0 && !anyTagPresent(e.Tags["e"], f.ETags) {
		return false
	}
	if len(f.PTags) > 0 && !anyTagPresent(e.Tags["p"], f.PTags) {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// anyTagPresent reports whether at least one value in wanted is present in
// eventValues (spec.md §4.6: tag predicates match on any overlap).
func anyTagPresent(eventValues, wanted []string) bool {
	for _, w := range wanted {
		if containsString(eventValues, w) {
			return true
		}
	}
	return false
}

// DefaultPerPeerCap is the default subscription cap per peer (spec.md §3).
const DefaultPerPeerCap = 10

type subKey struct {
	peerID string
	subID  string
}

type entry struct {
	key       subKey
	filter    Filter
	createdAt int64
}

// Manager owns every registered subscription across all peers. The admin
// path (register/unregister) is the single writer; match is read-only and
// safe for concurrent callers, mirroring the routing table's RWMutex shape.
type Manager struct {
	mu      sync.RWMutex
	perPeer map[string]map[string]*entry
	cap     int
}

func NewManager(perPeerCap int) *Manager {
	if perPeerCap <= 0 {
		perPeerCap = DefaultPerPeerCap
	}
	return &Manager{perPeer: make(map[string]map[string]*entry), cap: perPeerCap}
}

// Register installs filter under (peerID, subID), replacing any existing
// subscription of the same id. It rejects a new id once the peer's cap is
// reached.
func (m *Manager) Register(peerID, subID string, filter Filter, createdAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, ok := m.perPeer[peerID]
	if !ok {
		subs = make(map[string]*entry)
		m.perPeer[peerID] = subs
	}
	if _, exists := subs[subID]; !exists && len(subs) >= m.cap {
		return errs.NewAdminError(errs.AdminConflict, "subscription cap reached for peer")
	}
	subs[subID] = &entry{key: subKey{peerID, subID}, filter: filter, createdAt: createdAt}
	return nil
}

// Unregister removes one subscription. It reports whether it existed.
func (m *Manager) Unregister(peerID, subID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.perPeer[peerID]
	if !ok {
		return false
	}
	if _, ok := subs[subID]; !ok {
		return false
	}
	delete(subs, subID)
	if len(subs) == 0 {
		delete(m.perPeer, peerID)
	}
	return true
}

// UnregisterAllForPeer drops every subscription for peerID, e.g. on
// disconnect. It reports how many were removed.
func (m *Manager) UnregisterAllForPeer(peerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.perPeer[peerID]
	if !ok {
		return 0
	}
	n := len(subs)
	delete(m.perPeer, peerID)
	return n
}

// Match scans every registered subscription and returns the (peerID, subID)
// pairs whose filter matches e.
func (m *Manager) Match(e Event) []Match {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Match
	for peerID, subs := range m.perPeer {
		for subID, en := range subs {
			if en.filter.Matches(e) {
				out = append(out, Match{PeerID: peerID, SubID: subID})
			}
		}
	}
	return out
}

// Match identifies one subscription that matched an event.
type Match struct {
	PeerID string
	SubID  string
}

package subscription

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyFilterMatchesEverything(t *testing.T) {
	f := Filter{}
	require.True(t, f.Matches(Event{ID: "1", Author: "alice", Kind: 1}))
}

func TestFilterConjunctive(t *testing.T) {
	f := Filter{Authors: []string{"alice"}, Kinds: []int{1}}
	require.True(t, f.Matches(Event{ID: "1", Author: "alice", Kind: 1}))
	require.False(t, f.Matches(Event{ID: "1", Author: "bob", Kind: 1}))
	require.False(t, f.Matches(Event{ID: "1", Author: "alice", Kind: 2}))
}

func TestFilterSinceUntil(t *testing.T) {
	since := int64(100)
	until := int64(200)
	f := Filter{Since: &since, Until: &until}
	require.True(t, f.Matches(Event{CreatedAt: 150}))
	require.False(t, f.Matches(Event{CreatedAt: 99}))
	require.False(t, f.Matches(Event{CreatedAt: 201}))
}

func TestFilterTagPredicateAnyOverlap(t *testing.T) {
	f := Filter{ETags: []string{"evt1", "evt2"}}
	require.True(t, f.Matches(Event{Tags: map[string][]string{"e": {"evt2", "evt9"}}}))
	require.False(t, f.Matches(Event{Tags: map[string][]string{"e": {"evt9"}}}))
	require.False(t, f.Matches(Event{Tags: map[string][]string{}}))
}

func TestRegisterReplacesExisting(t *testing.T) {
	m := NewManager(2)
	require.NoError(t, m.Register("peerA", "sub1", Filter{}, 1))
	require.NoError(t, m.Register("peerA", "sub1", Filter{Kinds: []int{5}}, 2))
	matches := m.Match(Event{Kind: 5})
	require.Len(t, matches, 1)
}

func TestRegisterEnforcesPerPeerCap(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Register("peerA", "sub1", Filter{}, 1))
	err := m.Register("peerA", "sub2", Filter{}, 2)
	require.Error(t, err)
	// replacing the existing id is still allowed at cap.
	require.NoError(t, m.Register("peerA", "sub1", Filter{}, 3))
}

func TestUnregisterAndUnregisterAllForPeer(t *testing.T) {
	m := NewManager(10)
	require.NoError(t, m.Register("peerA", "sub1", Filter{}, 1))
	require.NoError(t, m.Register("peerA", "sub2", Filter{}, 1))
	require.True(t, m.Unregister("peerA", "sub1"))
	require.False(t, m.Unregister("peerA", "sub1"))
	require.Equal(t, 1, m.UnregisterAllForPeer("peerA"))
	require.Empty(t, m.Match(Event{}))
}

func TestMatchScansAllPeers(t *testing.T) {
	m := NewManager(10)
	require.NoError(t, m.Register("peerA", "sub1", Filter{Authors: []string{"alice"}}, 1))
	require.NoError(t, m.Register("peerB", "sub1", Filter{Authors: []string{"alice"}}, 1))
	matches := m.Match(Event{Author: "alice"})
	require.Len(t, matches, 2)
}

package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupNoRouteConfigured(t *testing.T) {
	tbl := New()
	tbl.Add("g.a", "peerA", 0)
	_, ok := tbl.Lookup("g.b.c")
	require.False(t, ok)
}

func TestLookupExactAndPrefix(t *testing.T) {
	tbl := New()
	tbl.Add("g.a", "peerA", 0)
	hop, ok := tbl.Lookup("g.a")
	require.True(t, ok)
	require.Equal(t, "peerA", hop)

	hop, ok = tbl.Lookup("g.a.x")
	require.True(t, ok)
	require.Equal(t, "peerA", hop)

	_, ok = tbl.Lookup("g.ab")
	require.False(t, ok)
}

func TestLongestPrefixWins(t *testing.T) {
	tbl := New()
	tbl.Add("g.a", "hop1", 0)
	tbl.Add("g.a.b", "hop2", 0)
	hop, ok := tbl.Lookup("g.a.b.c")
	require.True(t, ok)
	require.Equal(t, "hop2", hop)
}

func TestTieBreakByPriorityThenInsertionOrder(t *testing.T) {
	tbl := New()
	tbl.Add("g.a", "low-priority", 5)
	tbl.Add("g.a", "low-priority", 1) // idempotent update, same (prefix, nextHop)
	tbl.Add("g.a", "second", 1)
	hop, ok := tbl.Lookup("g.a")
	require.True(t, ok)
	require.Equal(t, "low-priority", hop) // inserted first, same priority 1

	tbl2 := New()
	tbl2.Add("g.a", "hopHighPriorityNumber", 10)
	tbl2.Add("g.a", "hopLowPriorityNumber", 1)
	hop, ok = tbl2.Lookup("g.a")
	require.True(t, ok)
	require.Equal(t, "hopLowPriorityNumber", hop)
}

func TestRemove(t *testing.T) {
	tbl := New()
	tbl.Add("g.a", "hop1", 0)
	require.True(t, tbl.Remove("g.a"))
	require.False(t, tbl.Remove("g.a"))
	_, ok := tbl.Lookup("g.a")
	require.False(t, ok)
}

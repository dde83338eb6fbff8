package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/alldoizcode/connector/internal/btp"
	"github.com/alldoizcode/connector/internal/claim"
	"github.com/alldoizcode/connector/internal/claim/aptoschain"
	"github.com/alldoizcode/connector/internal/claim/evmchain"
	"github.com/alldoizcode/connector/internal/claim/xrpchain"
	"github.com/alldoizcode/connector/internal/oer"
	"github.com/alldoizcode/connector/internal/routing"
	"github.com/alldoizcode/connector/internal/store"
	"github.com/alldoizcode/connector/internal/telemetry"
)

// testSubmitters mirrors cmd/connector's defaultSubmitters wiring so the
// settlement happy path is actually exercised here too, not just the
// no-stored-claim miss.
func testSubmitters() map[claim.Chain]claim.ChainSubmitter {
	return map[claim.Chain]claim.ChainSubmitter{
		claim.ChainEVM:   &evmchain.Submitter{},
		claim.ChainXRP:   &xrpchain.Submitter{},
		claim.ChainAptos: &aptoschain.Submitter{},
	}
}

func testSurface(t *testing.T) (*Surface, *store.MemoryClaimStore) {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	routes := routing.New()
	fabric := btp.NewFabric(log, telemetry.Noop{}, nil)
	claimStore := store.NewMemoryClaimStore()
	claims := claim.NewManager(log, telemetry.Noop{}, claimStore, claim.SignerSet{}, testSubmitters(), nil)
	return NewSurface(log, routes, fabric, claims), claimStore
}

func TestAddRouteRejectsEmptyFields(t *testing.T) {
	s, _ := testSurface(t)
	require.Error(t, s.AddRoute("", "peer", 0))
	require.Error(t, s.AddRoute("g.a", "", 0))
	require.NoError(t, s.AddRoute("g.a", "peer", 0))
}

func TestRemoveRouteNotFound(t *testing.T) {
	s, _ := testSurface(t)
	require.Error(t, s.RemoveRoute("g.nowhere"))
	require.NoError(t, s.AddRoute("g.a", "peer", 0))
	require.NoError(t, s.RemoveRoute("g.a"))
}

func TestPeerStatusDisconnectedWhenUnknown(t *testing.T) {
	s, _ := testSurface(t)
	status := s.PeerStatus("ghost")
	require.False(t, status.Connected)
	require.Equal(t, "disconnected", status.State)
}

func TestSubmitOutboundPrepareNoRoute(t *testing.T) {
	s, _ := testSurface(t)
	p := &oer.Prepare{Destination: "g.nonexistent", Amount: 10}
	f, r, err := s.SubmitOutboundPrepare(context.Background(), p)
	require.Error(t, err)
	require.Nil(t, f)
	require.Nil(t, r)
}

func TestInitiateSettlementWithoutClaim(t *testing.T) {
	s, _ := testSurface(t)
	result := s.InitiateSettlement(context.Background(), "peerA", claim.ChainEVM, "channel-1", 100)
	require.False(t, result.Success)
	require.Equal(t, "No stored claim available", result.Error)
}

// TestInitiateSettlementSubmitsWithConfiguredSubmitter exercises the happy
// path the bare "no stored claim" test above never reaches: a stored claim
// plus a wired ChainSubmitter must actually produce a tx hash.
func TestInitiateSettlementSubmitsWithConfiguredSubmitter(t *testing.T) {
	s, claimStore := testSurface(t)
	key := store.ClaimKey{PeerID: "peerA", Chain: string(claim.ChainEVM), ChannelID: "channel-1"}
	require.True(t, claimStore.CompareAndStore(key, "stub-claim", func(any, any) bool { return true }))

	result := s.InitiateSettlement(context.Background(), "peerA", claim.ChainEVM, "channel-1", 100)
	require.True(t, result.Success)
	require.NotEmpty(t, result.TxHash)
	require.Empty(t, result.Error)
}

func TestAddAndRemovePeer(t *testing.T) {
	s, _ := testSurface(t)
	require.NoError(t, s.AddPeer(context.Background(), btp.PeerTarget{PeerID: "peerX", URL: "ws://127.0.0.1:1/unused"}))
	require.NoError(t, s.RemovePeer("peerX"))
	require.Error(t, s.RemovePeer("peerX"))
}

func TestHTTPRouterAddRouteAndPeerStatus(t *testing.T) {
	s, _ := testSurface(t)
	router := s.Router()

	body := `{"prefix":"g.a","nextHop":"peer","priority":0}`
	req := httptest.NewRequest(http.MethodPost, "/routes", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/peers/ghost", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var status PeerStatusResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	require.False(t, status.Connected)
}

func TestHTTPRouterRemoveRouteNotFoundMapsTo404(t *testing.T) {
	s, _ := testSurface(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodDelete, "/routes/g.nowhere", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPRouterInitiateSettlementWithoutClaim(t *testing.T) {
	s, _ := testSurface(t)
	router := s.Router()

	body := `{"peerId":"peerA","chain":"evm","channelId":"channel-1","amount":100}`
	req := httptest.NewRequest(http.MethodPost, "/settlement", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result claim.SettlementResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.False(t, result.Success)
}

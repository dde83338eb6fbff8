// Package admin implements the core's typed admin operations (spec.md §6:
// "the core exposes typed operations: add/remove peer, add/remove route,
// query peer status, submit outbound Prepare, initiate settlement"). Wire
// bindings (HTTP/CLI) are collaborator concerns layered on top in
// cmd/connector; this package is transport-agnostic.
package admin

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/alldoizcode/connector/internal/btp"
	"github.com/alldoizcode/connector/internal/claim"
	"github.com/alldoizcode/connector/internal/errs"
	"github.com/alldoizcode/connector/internal/oer"
	"github.com/alldoizcode/connector/internal/routing"
)

// Surface wires the components an admin operation reaches into. It owns the
// lifecycle of dialed peer connections (spec.md §9: "the manager owns the
// client map; clients hold only a back-reference identifier").
type Surface struct {
	log    *logrus.Entry
	routes *routing.Table
	fabric *btp.Fabric
	claims *claim.Manager

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewSurface(log *logrus.Entry, routes *routing.Table, fabric *btp.Fabric, claims *claim.Manager) *Surface {
	return &Surface{log: log, routes: routes, fabric: fabric, claims: claims, cancels: make(map[string]context.CancelFunc)}
}

// AddPeer dials and maintains a connection to the peer described by target
// for the life of the Surface (or until RemovePeer). A second AddPeer for
// the same peer id replaces the first.
func (s *Surface) AddPeer(ctx context.Context, target btp.PeerTarget) error {
	if target.PeerID == "" || target.URL == "" {
		return errs.NewAdminError(errs.AdminBadRequest, "peer id and url are required")
	}
	s.mu.Lock()
	if cancel, ok := s.cancels[target.PeerID]; ok {
		cancel()
	}
	keepCtx, cancel := context.WithCancel(ctx)
	s.cancels[target.PeerID] = cancel
	s.mu.Unlock()

	go s.fabric.Keep(keepCtx, target)
	return nil
}

// RemovePeer stops maintaining and tears down the connection to peerID.
func (s *Surface) RemovePeer(peerID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[peerID]
	delete(s.cancels, peerID)
	s.mu.Unlock()
	if !ok {
		return errs.NewAdminError(errs.AdminNotFound, "peer not configured: "+peerID)
	}
	cancel()
	s.fabric.Forget(peerID)
	return nil
}

// PeerStatusResult reports a peer's current connection state (spec.md §3 Peer).
type PeerStatusResult struct {
	PeerID    string
	Connected bool
	State     string
}

// PeerStatus reports peerID's current BTP connection state.
func (s *Surface) PeerStatus(peerID string) PeerStatusResult {
	state := s.fabric.State(peerID)
	return PeerStatusResult{PeerID: peerID, Connected: state == btp.StateAuthenticated, State: state.String()}
}

// AddRoute installs or updates a route (spec.md §3 Route).
func (s *Surface) AddRoute(prefix, nextHop string, priority int) error {
	if prefix == "" || nextHop == "" {
		return errs.NewAdminError(errs.AdminBadRequest, "prefix and next hop are required")
	}
	s.routes.Add(prefix, nextHop, priority)
	return nil
}

// RemoveRoute deletes every route configured for prefix.
func (s *Surface) RemoveRoute(prefix string) error {
	if !s.routes.Remove(prefix) {
		return errs.NewAdminError(errs.AdminNotFound, "no route configured for prefix: "+prefix)
	}
	return nil
}

// SubmitOutboundPrepare originates a Prepare locally (not received from any
// peer) and forwards it to destination's routed next hop, returning the
// eventual Fulfill/Reject. It is the admin-path counterpart of the packet
// handler's forwarding step, grounded on spec.md §6's "submit outbound
// Prepare" operation.
func (s *Surface) SubmitOutboundPrepare(ctx context.Context, p *oer.Prepare) (*oer.Fulfill, *oer.Reject, error) {
	nextHop, ok := s.routes.Lookup(p.Destination)
	if !ok {
		return nil, nil, errs.NewAdminError(errs.AdminNotFound, "no route to destination: "+p.Destination)
	}
	wire, err := oer.SerializePrepare(p)
	if err != nil {
		return nil, nil, errs.NewAdminError(errs.AdminBadRequest, err.Error())
	}
	respWire, err := s.fabric.SendPacket(ctx, nextHop, wire)
	if err != nil {
		return nil, nil, errs.NewAdminError(errs.AdminServiceUnavailable, fmt.Sprintf("send to %s: %v", nextHop, err))
	}
	resp, err := oer.DeserializePacket(respWire)
	if err != nil {
		return nil, nil, errs.NewAdminError(errs.AdminInternal, "malformed response: "+err.Error())
	}
	return resp.Fulfill, resp.Reject, nil
}

// InitiateSettlement dispatches on-chain settlement of the latest stored
// claim for (peerID, chain, channelID).
func (s *Surface) InitiateSettlement(ctx context.Context, peerID string, chain claim.Chain, channelID string, amount uint64) claim.SettlementResult {
	return s.claims.Settle(ctx, peerID, chain, channelID, amount)
}

package btp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alldoizcode/connector/internal/telemetry"
)

// PeerTarget is a statically configured outbound peer to dial and keep
// connected (spec.md §4.3, bootstrapped from internal/config's peer table).
type PeerTarget struct {
	PeerID string
	URL    string
	Secret []byte
}

// Fabric owns every peer Connection, dialed or accepted, and re-dials
// configured peers on disconnect with backoff+jitter. It is the collaborator
// internal/packet depends on to move packets hop-to-hop.
type Fabric struct {
	log       *logrus.Entry
	telemetry telemetry.Emitter
	backoff   BackoffPolicy

	mu    sync.RWMutex
	peers map[string]*Connection

	onMessage MessageHandler
}

// NewFabric constructs a Fabric. onMessage is invoked for every inbound
// MESSAGE frame (fresh Prepare/Fulfill/Reject deliveries) on any peer
// connection, dialed or accepted; it is handed the originating Connection so
// it can reply via conn.SendResponse.
func NewFabric(log *logrus.Entry, em telemetry.Emitter, onMessage MessageHandler) *Fabric {
	if onMessage == nil {
		onMessage = func(*Connection, *Frame) {}
	}
	return &Fabric{
		log: log, telemetry: em, backoff: DefaultBackoffPolicy(),
		peers: make(map[string]*Connection), onMessage: onMessage,
	}
}

// Accept registers an inbound Connection established via Server.
func (fa *Fabric) Accept(conn *Connection) {
	fa.mu.Lock()
	fa.peers[conn.PeerID] = conn
	fa.mu.Unlock()
}

// Peer returns the live connection for peerID, if connected.
func (fa *Fabric) Peer(peerID string) (*Connection, bool) {
	fa.mu.RLock()
	defer fa.mu.RUnlock()
	c, ok := fa.peers[peerID]
	return c, ok
}

// State reports peerID's connection state, or StateDisconnected if there is
// no live connection.
func (fa *Fabric) State(peerID string) State {
	fa.mu.RLock()
	defer fa.mu.RUnlock()
	c, ok := fa.peers[peerID]
	if !ok {
		return StateDisconnected
	}
	return c.State()
}

// Forget closes and removes peerID's connection, if any. Used by the admin
// surface's remove-peer operation.
func (fa *Fabric) Forget(peerID string) {
	fa.mu.Lock()
	c, ok := fa.peers[peerID]
	delete(fa.peers, peerID)
	fa.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Keep dials target and maintains the connection for the lifetime of ctx,
// reconnecting with backoff+jitter whenever the connection drops (spec.md
// §4.3 Reconnect policy), grounded on the teacher's DialSeed retry loop.
func (fa *Fabric) Keep(ctx context.Context, target PeerTarget) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := Dial(ctx, target.URL, target.PeerID, target.Secret, fa.log, fa.onMessage)
		if err != nil {
			fa.telemetry.BTPReconnect(target.PeerID)
			fa.log.WithError(err).WithField("peer", target.PeerID).Warn("btp: dial failed, retrying")
			delay := fa.backoff.Delay(attempt)
			attempt++
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		fa.mu.Lock()
		fa.peers[target.PeerID] = conn
		fa.mu.Unlock()

		<-conn.done // blocks until the connection drops
		fa.mu.Lock()
		delete(fa.peers, target.PeerID)
		fa.mu.Unlock()
	}
}

// SendPacket wraps ilpPacket as a BTP MESSAGE frame, sends it to peerID, and
// returns the correlated response's embedded ILP packet bytes. Used by
// internal/packet to forward a Prepare and await the downstream
// Fulfill/Reject (spec.md §4.4).
func (fa *Fabric) SendPacket(ctx context.Context, peerID string, ilpPacket []byte) ([]byte, error) {
	conn, ok := fa.Peer(peerID)
	if !ok {
		return nil, fmt.Errorf("btp: no connection to peer %s", peerID)
	}
	reqID := conn.NextRequestID()
	resp, err := conn.SendRequest(ctx, &Frame{Type: TypeMessage, RequestID: reqID, ILPPacket: ilpPacket})
	if err != nil {
		if errors.Is(err, ErrSendQueueFull) {
			return nil, fmt.Errorf("btp: send queue full for peer %s: %w", peerID, ErrSendQueueFull)
		}
		return nil, err
	}
	if resp.Type == TypeError {
		return nil, fmt.Errorf("btp: peer %s returned a BTP-level error", peerID)
	}
	return resp.ILPPacket, nil
}

// RespondToMessage answers an inbound MESSAGE frame with a correlated
// RESPONSE frame carrying replyPacket (the local Fulfill/Reject bytes).
func (fa *Fabric) RespondToMessage(ctx context.Context, peerID string, requestID uint32, replyPacket []byte) error {
	conn, ok := fa.Peer(peerID)
	if !ok {
		return fmt.Errorf("btp: no connection to peer %s", peerID)
	}
	return conn.SendResponse(ctx, &Frame{Type: TypeResponse, RequestID: requestID, ILPPacket: replyPacket})
}

// sleepCtx waits out d unless ctx is cancelled first, returning false in
// that case so callers can stop their retry loop promptly.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Package gateway implements the optional local messaging edge (spec.md §6,
// gated behind ENABLE_PRIVATE_MESSAGING): an HTTP POST endpoint for
// self-fulfilling local sends and a WebSocket endpoint for subscribing to
// pushed application events, grounded on the teacher's walletserver HTTP
// surface but routed with the teacher's own go-chi dependency instead of
// gorilla/mux (see DESIGN.md).
package gateway

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/alldoizcode/connector/internal/address"
	"github.com/alldoizcode/connector/internal/errs"
	"github.com/alldoizcode/connector/internal/oer"
	"github.com/alldoizcode/connector/internal/subscription"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway is the edge's collaborator state: subscribed client sessions and
// their WebSocket connections.
type Gateway struct {
	log  *logrus.Entry
	subs *subscription.Manager

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewGateway(log *logrus.Entry, subs *subscription.Manager) *Gateway {
	return &Gateway{log: log, subs: subs, conns: make(map[string]*websocket.Conn)}
}

// Router returns the gateway's HTTP handler, mountable standalone or under a
// larger chi.Router in cmd/connector.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/send", g.handleSend)
	r.Get("/ws", g.handleWS)
	return r
}

type sendRequest struct {
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	Data        string `json:"data"` // base64-agnostic: treated as raw UTF-8 payload bytes
}

type sendResponse struct {
	Fulfilled   bool   `json:"fulfilled"`
	Fulfillment string `json:"fulfillment,omitempty"`
	RejectCode  string `json:"rejectCode,omitempty"`
	Message     string `json:"message,omitempty"`
}

// handleSend implements the self-fulfilling local send: it generates its own
// fulfillment/condition pair, builds and validates a Prepare against the OER
// codec, and answers with the Fulfill synchronously — there is no network
// hop because the gateway is both the source and the local sink.
func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sendResponse{Message: "invalid request body"})
		return
	}
	if !address.Valid(req.Destination) {
		writeJSON(w, http.StatusOK, sendResponse{RejectCode: errs.CodeInvalidPacket, Message: "invalid destination address"})
		return
	}

	var fulfillment [32]byte
	if _, err := rand.Read(fulfillment[:]); err != nil {
		writeJSON(w, http.StatusInternalServerError, sendResponse{Message: "failed to generate fulfillment"})
		return
	}
	condition := sha256.Sum256(fulfillment[:])

	p := &oer.Prepare{
		Amount:             req.Amount,
		ExpiresAt:          time.Now().Add(time.Minute),
		ExecutionCondition: condition,
		Destination:        req.Destination,
		Data:               []byte(req.Data),
	}
	wire, err := oer.SerializePrepare(p)
	if err != nil {
		writeJSON(w, http.StatusOK, sendResponse{RejectCode: errs.CodeInvalidPacket, Message: err.Error()})
		return
	}
	if _, err := oer.DeserializePacket(wire); err != nil {
		writeJSON(w, http.StatusOK, sendResponse{RejectCode: errs.CodeInvalidPacket, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{Fulfilled: true, Fulfillment: hex.EncodeToString(fulfillment[:])})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type subscribeMessage struct {
	SubID string               `json:"subId"`
	Filter subscription.Filter `json:"filter"`
}

// handleWS upgrades the request and registers inbound {subId, filter}
// messages as subscriptions for this session; PushEvent later delivers
// matching events until the client disconnects.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("gateway: websocket upgrade failed")
		return
	}
	sessionID := uuid.NewString()
	g.mu.Lock()
	g.conns[sessionID] = ws
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.conns, sessionID)
		g.mu.Unlock()
		g.subs.UnregisterAllForPeer(sessionID)
		ws.Close()
	}()

	for {
		var msg subscribeMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		if err := g.subs.Register(sessionID, msg.SubID, msg.Filter, time.Now().Unix()); err != nil {
			_ = ws.WriteJSON(map[string]string{"error": err.Error()})
		}
	}
}

// HandleLocalPrepare is the packet.LocalHandler implementation bound to this
// gateway: it is called once the packet handler's routing step (spec.md
// §4.4) determines a Prepare's destination is this connector itself. The
// gateway has no preimage for the sender's execution condition, so it cannot
// fulfill on the sender's terms; instead it treats arrival as final delivery
// to subscribed local applications and fulfills with a zero-value
// fulfillment, mirroring handleSend's self-fulfilling local-sink role but
// for packets arriving over the wire rather than originated locally.
func (g *Gateway) HandleLocalPrepare(ctx context.Context, p *oer.Prepare) (*oer.Fulfill, *oer.Reject) {
	if time.Now().After(p.ExpiresAt) {
		return nil, &oer.Reject{Code: errs.CodeTransferTimedOut, Message: "prepare expired before local delivery"}
	}

	event := subscription.Event{
		ID:        uuid.NewString(),
		Author:    p.Destination,
		Kind:      0,
		CreatedAt: time.Now().Unix(),
		Tags:      map[string][]string{"p": {p.Destination}},
	}
	g.PushEvent(event, map[string]any{
		"destination": p.Destination,
		"amount":      p.Amount,
		"data":        hex.EncodeToString(p.Data),
	})

	var fulfillment [32]byte
	return &oer.Fulfill{Fulfillment: fulfillment, Data: p.Data}, nil
}

// PushEvent delivers payload to every session whose registered filter
// matches e.
func (g *Gateway) PushEvent(e subscription.Event, payload any) {
	matches := g.subs.Match(e)
	if len(matches) == 0 {
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, m := range matches {
		conn, ok := g.conns[m.PeerID]
		if !ok {
			continue
		}
		if err := conn.WriteJSON(payload); err != nil {
			g.log.WithError(err).WithField("session", m.PeerID).Warn("gateway: failed to push event")
		}
	}
}

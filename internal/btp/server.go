package btp

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server accepts inbound BTP WebSocket connections and authenticates them
// against auth before handing an authenticated Connection to onAccept.
type Server struct {
	log       *logrus.Entry
	auth      PeerAuthenticator
	onAccept  func(*Connection)
	onMessage MessageHandler
}

func NewServer(log *logrus.Entry, auth PeerAuthenticator, onAccept func(*Connection), onMessage MessageHandler) *Server {
	return &Server{log: log, auth: auth, onAccept: onAccept, onMessage: onMessage}
}

// ServeHTTP upgrades the connection and runs the inbound auth handshake.
// Registered by cmd/connector at the BTP server's listen path (/btp).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("btp: upgrade failed")
		return
	}

	conn := newConnection("", ws, s.log)
	conn.setState(StateConnected)

	authCtx, cancel := context.WithTimeout(r.Context(), authTimeout)
	defer cancel()

	authFrame, peerID, err := s.awaitAuth(authCtx, conn)
	if err != nil {
		s.log.WithError(err).Warn("btp: inbound auth failed")
		conn.Close()
		return
	}
	conn.PeerID = peerID
	conn.log = conn.log.WithField("peer", peerID)

	secret, _ := authFrame.ProtocolDatum(AuthProtocolName)
	if !s.auth.Authenticate(authCtx, peerID, secret.Data) {
		_ = conn.SendResponse(authCtx, &Frame{Type: TypeError, RequestID: authFrame.RequestID})
		conn.Close()
		return
	}
	_ = conn.SendResponse(authCtx, &Frame{Type: TypeResponse, RequestID: authFrame.RequestID})
	conn.setState(StateAuthenticated)

	go conn.pingLoop(30 * time.Second)
	s.onAccept(conn)
	conn.readLoop(s.onMessage)
}

// awaitAuth reads the first frame off conn and returns it together with its
// auth_peer_id value, or fails when ctx expires first. It does not check the
// frame's type or that an auth_token entry is present; a frame without one
// fails the Authenticate call in ServeHTTP.
func (s *Server) awaitAuth(ctx context.Context, conn *Connection) (*Frame, string, error) {
	type result struct {
		f   *Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		_, b, err := conn.ws.ReadMessage()
		if err != nil {
			ch <- result{err: err}
			return
		}
		f, err := DecodeFrame(b)
		ch <- result{f: f, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, "", r.err
		}
		peerIDEntry, _ := r.f.ProtocolDatum("auth_peer_id")
		return r.f, string(peerIDEntry.Data), nil
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

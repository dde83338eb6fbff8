package btp

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// authTimeout bounds how long a dialed connection waits for the peer's
// auth acknowledgment before giving up.
const authTimeout = 10 * time.Second

// Dial opens a WebSocket connection to url, sends the auth handshake for
// peerID/secret, and returns an authenticated Connection. Grounded on the
// teacher's NewNode/DialSeed bootstrap pattern in network.go, adapted from
// libp2p host dialing to a plain WebSocket client dial.
func Dial(ctx context.Context, url, peerID string, secret []byte, log *logrus.Entry, onMessage MessageHandler) (*Connection, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("btp: dial %s: %w", url, err)
	}

	conn := newConnection(peerID, ws, log.WithField("peer", peerID))
	conn.setState(StateDialing)
	go conn.readLoop(onMessage)

	authCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	reqID := conn.NextRequestID()
	resp, err := conn.SendRequest(authCtx, authFrame(reqID, peerID, secret))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("btp: auth handshake with %s: %w", peerID, err)
	}
	if resp.Type == TypeError {
		conn.Close()
		return nil, fmt.Errorf("btp: peer %s rejected auth", peerID)
	}

	conn.setState(StateAuthenticated)
	go conn.pingLoop(30 * time.Second)
	return conn, nil
}

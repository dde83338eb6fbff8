package btp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// errConnectionClosed is returned by Connection methods invoked after the
// underlying WebSocket has closed.
var errConnectionClosed = errors.New("btp: connection closed")

// ErrSendQueueFull is returned by enqueue (and everything built on top of it)
// when the send queue is already at sendQueueHighWaterMark. It signals
// transient local backpressure, not a dead peer, so callers map it to a
// retryable condition (spec.md §4.3/§5: T04_INSUFFICIENT_LIQUIDITY) rather
// than treating it as an unreachable-peer transport failure.
var ErrSendQueueFull = errors.New("btp: send queue full")

// State is a peer connection's position in the BTP lifecycle (spec.md §4.3).
type State int

const (
	StateDisconnected State = iota
	StateDialing
	StateConnected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDialing:
		return "dialing"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// sendQueueHighWaterMark is the default backpressure threshold (spec.md §4.3):
// once this many outbound frames are queued, enqueue fails fast with
// ErrSendQueueFull instead of growing the queue further.
const sendQueueHighWaterMark = 256

// Connection is one peer's live BTP transport: a WebSocket connection plus
// request/response correlation and an outbound send queue.
type Connection struct {
	PeerID string

	log  *logrus.Entry
	ws   *websocket.Conn
	mu   sync.Mutex
	state State

	pendingMu sync.Mutex
	pending   map[uint32]chan *Frame

	sendQueue chan *Frame
	done      chan struct{}
	closeOnce sync.Once

	nextRequestID uint32
}

func newConnection(peerID string, ws *websocket.Conn, log *logrus.Entry) *Connection {
	c := &Connection{
		PeerID:    peerID,
		log:       log,
		ws:        ws,
		state:     StateConnected,
		pending:   make(map[uint32]chan *Frame),
		sendQueue: make(chan *Frame, sendQueueHighWaterMark),
		done:      make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// writeLoop drains sendQueue onto the socket one frame at a time, keeping
// writes single-threaded as gorilla/websocket requires.
func (c *Connection) writeLoop() {
	for {
		select {
		case f := <-c.sendQueue:
			b := EncodeFrame(f)
			if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
				c.log.WithError(err).WithField("peer", c.PeerID).Warn("btp: write failed")
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue pushes f onto the send queue, failing fast with ErrSendQueueFull
// once the high-water mark is reached rather than blocking the caller or
// buffering without bound.
func (c *Connection) enqueue(ctx context.Context, f *Frame) error {
	select {
	case <-c.done:
		return errConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.sendQueue <- f:
		return nil
	case <-c.done:
		return errConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendQueueFull
	}
}

// NextRequestID returns a fresh, connection-scoped request id.
func (c *Connection) NextRequestID() uint32 {
	return atomic.AddUint32(&c.nextRequestID, 1)
}

// SendRequest enqueues a MESSAGE frame and waits for its correlated
// RESPONSE/ERROR frame or ctx expiry, per spec.md §4.3 request/response
// correlation.
func (c *Connection) SendRequest(ctx context.Context, f *Frame) (*Frame, error) {
	ch := make(chan *Frame, 1)
	c.pendingMu.Lock()
	c.pending[f.RequestID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, f.RequestID)
		c.pendingMu.Unlock()
	}()

	if err := c.enqueue(ctx, f); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errConnectionClosed
	}
}

// SendResponse enqueues a RESPONSE/ERROR frame without awaiting further reply.
func (c *Connection) SendResponse(ctx context.Context, f *Frame) error {
	return c.enqueue(ctx, f)
}

// MessageHandler processes a fresh inbound MESSAGE frame on conn. It is
// responsible for answering via conn.SendResponse if a reply is owed.
type MessageHandler func(conn *Connection, f *Frame)

// dispatch routes an inbound frame either to a pending requester (by
// requestId, dropping duplicates silently per spec.md §4.3) or to the
// provided message handler for fresh MESSAGE frames.
func (c *Connection) dispatch(f *Frame, onMessage MessageHandler) {
	if f.Type == TypeResponse || f.Type == TypeError {
		c.pendingMu.Lock()
		ch, ok := c.pending[f.RequestID]
		c.pendingMu.Unlock()
		if !ok {
			return // no waiter: duplicate or unsolicited response, dropped
		}
		select {
		case ch <- f:
		default:
		}
		return
	}
	onMessage(c, f)
}

// readLoop blocks reading frames off the socket until it errors or closes.
func (c *Connection) readLoop(onMessage MessageHandler) {
	defer c.Close()
	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			c.log.WithError(err).WithField("peer", c.PeerID).Info("btp: connection read loop ended")
			return
		}
		f, err := DecodeFrame(b)
		if err != nil {
			c.log.WithError(err).WithField("peer", c.PeerID).Warn("btp: malformed frame discarded")
			continue
		}
		c.dispatch(f, onMessage)
	}
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// pingLoop keeps the WebSocket alive and detects half-open connections; it
// mirrors the keepalive interval a production BTP peer uses.
func (c *Connection) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

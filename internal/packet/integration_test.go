package packet

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/alldoizcode/connector/internal/errs"
	"github.com/alldoizcode/connector/internal/oer"
	"github.com/alldoizcode/connector/internal/routing"
	"github.com/alldoizcode/connector/internal/telemetry"
)

// chainSender dispatches SendPacket synchronously to whichever Handler is
// registered under peerID, standing in for the BTP fabric across a chain of
// hops without a real network.
type chainSender struct {
	hops map[string]*Handler
	// fromPeer is the peer id each hop sees as its caller, i.e. the id of
	// the upstream hop relative to that entry.
	fromPeer map[string]string
}

func (c *chainSender) SendPacket(ctx context.Context, peerID string, ilpPacket []byte) ([]byte, error) {
	h, ok := c.hops[peerID]
	if !ok {
		return nil, errContextUnrelated
	}
	any, err := oer.DeserializePacket(ilpPacket)
	if err != nil || any.Prepare == nil {
		return nil, errContextUnrelated
	}
	fulfill, reject := h.Handle(ctx, c.fromPeer[peerID], any.Prepare)
	if fulfill != nil {
		return oer.SerializeFulfill(fulfill)
	}
	return oer.SerializeReject(reject)
}

func newHopHandler(self string, routes *routing.Table, sender Sender, local LocalHandler, feeRatePermil uint64) *Handler {
	cfg := Config{
		SelfAddress:        self,
		FeeRatePermil:      feeRatePermil,
		MinForwardedAmount: 1,
		MaxHoldTime:        time.Minute,
		MinHoldTime:        time.Millisecond,
	}
	return NewHandler(cfg, routes, sender, local, telemetry.Noop{}, logrus.NewEntry(logrus.New()))
}

// TestFiveHopHappyPath builds P1→P2→P3→P4→P5 with a 0.1% fee per hop and
// checks the exact forwarded amount seen at each hop (spec.md §8 scenario 1).
func TestFiveHopHappyPath(t *testing.T) {
	const feeRatePermil = 1_000 // 0.1%

	fulfillment := [32]byte{7, 7, 7}
	condition := sha256.Sum256(fulfillment[:])

	p5Routes := routing.New()
	p5Routes.Add("g.peer5.dst", LocalSinkNextHop, 0)
	var seenAtP5 uint64
	p5Local := localHandlerFunc(func(ctx context.Context, p *oer.Prepare) (*oer.Fulfill, *oer.Reject) {
		seenAtP5 = p.Amount
		return &oer.Fulfill{Fulfillment: fulfillment}, nil
	})

	sender := &chainSender{hops: map[string]*Handler{}, fromPeer: map[string]string{}}

	p4Routes := routing.New()
	p4Routes.Add("g.peer5", "p5", 0)
	p3Routes := routing.New()
	p3Routes.Add("g.peer5", "p4", 0)
	p2Routes := routing.New()
	p2Routes.Add("g.peer5", "p3", 0)
	p1Routes := routing.New()
	p1Routes.Add("g.peer5", "p2", 0)

	p5 := newHopHandler("g.peer5", p5Routes, nil, p5Local, feeRatePermil)
	p4 := newHopHandler("g.peer4", p4Routes, sender, nil, feeRatePermil)
	p3 := newHopHandler("g.peer3", p3Routes, sender, nil, feeRatePermil)
	p2 := newHopHandler("g.peer2", p2Routes, sender, nil, feeRatePermil)
	p1 := newHopHandler("g.peer1", p1Routes, sender, nil, feeRatePermil)

	sender.hops["p5"] = p5
	sender.hops["p4"] = p4
	sender.hops["p3"] = p3
	sender.hops["p2"] = p2
	sender.fromPeer["p5"] = "p4"
	sender.fromPeer["p4"] = "p3"
	sender.fromPeer["p3"] = "p2"
	sender.fromPeer["p2"] = "p1"

	p := samplePrepare("g.peer5.dst", 1_000_000, time.Minute, condition)
	fulfill, reject := p1.Handle(context.Background(), "upstreamOfP1", p)

	require.Nil(t, reject)
	require.NotNil(t, fulfill)
	require.Equal(t, fulfillment, fulfill.Fulfillment)
	require.Equal(t, uint64(996_006), seenAtP5)
}

// TestUnreachableDestinationRejects covers spec.md §8 scenario 2: no matching
// route at the first hop yields F02, triggered by that hop itself.
func TestUnreachableDestinationRejects(t *testing.T) {
	routes := routing.New()
	p1 := newHopHandler("g.peer1", routes, nil, nil, 1_000)
	p := samplePrepare("g.nonexistent", 100, time.Minute, [32]byte{})
	fulfill, reject := p1.Handle(context.Background(), "upstream", p)
	require.Nil(t, fulfill)
	require.Equal(t, errs.CodeUnreachable, reject.Code)
	require.Equal(t, "g.peer1", reject.TriggeredBy)
}

// TestExpiredOnArrivalRejectsWithoutForwarding covers spec.md §8 scenario 3.
func TestExpiredOnArrivalRejectsWithoutForwarding(t *testing.T) {
	routes := routing.New()
	routes.Add("g.dest", "peerNext", 0)
	called := false
	sender := sendFunc(func(ctx context.Context, peerID string, ilpPacket []byte) ([]byte, error) {
		called = true
		return nil, nil
	})
	p1 := newHopHandler("g.peer1", routes, sender, nil, 1_000)
	p := samplePrepare("g.dest.alice", 100, -time.Second, [32]byte{})
	fulfill, reject := p1.Handle(context.Background(), "upstream", p)
	require.Nil(t, fulfill)
	require.Equal(t, errs.CodeTransferTimedOut, reject.Code)
	require.False(t, called)
}

// TestWrongConditionTamperingConvertsToReject covers spec.md §8 scenario 4:
// a downstream hop's Fulfill with a mismatching preimage is converted into
// a Reject upstream rather than propagated as a forged Fulfill.
func TestWrongConditionTamperingConvertsToReject(t *testing.T) {
	tamperedFulfillment := [32]byte{1, 2, 3}
	realCondition := sha256.Sum256([]byte("the real preimage, never sent downstream"))

	fulfillWire, err := oer.SerializeFulfill(&oer.Fulfill{Fulfillment: tamperedFulfillment})
	require.NoError(t, err)

	routes := routing.New()
	routes.Add("g.dest", "peerNext", 0)
	p4 := newHopHandler("g.peer4", routes, stubSender{resp: fulfillWire}, nil, 1_000)

	p := samplePrepare("g.dest.alice", 1000, time.Minute, realCondition)
	fulfill, reject := p4.Handle(context.Background(), "p3", p)
	require.Nil(t, fulfill)
	require.Equal(t, errs.CodeWrongCondition, reject.Code)
}

type sendFunc func(ctx context.Context, peerID string, ilpPacket []byte) ([]byte, error)

func (f sendFunc) SendPacket(ctx context.Context, peerID string, ilpPacket []byte) ([]byte, error) {
	return f(ctx, peerID, ilpPacket)
}

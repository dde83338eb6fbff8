// Package packet implements the Prepare -> {Fulfill, Reject} state machine
// (spec.md §4.4): the connector's single per-hop forwarding decision.
package packet

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alldoizcode/connector/internal/address"
	"github.com/alldoizcode/connector/internal/btp"
	"github.com/alldoizcode/connector/internal/errs"
	"github.com/alldoizcode/connector/internal/oer"
	"github.com/alldoizcode/connector/internal/routing"
	"github.com/alldoizcode/connector/internal/telemetry"
)

// Sender forwards a serialized Prepare to peerID and returns the serialized
// Fulfill/Reject response, or an error on timeout/transport failure.
// Implemented by *btp.Fabric; kept as an interface so this package is
// testable without a live WebSocket fabric.
type Sender interface {
	SendPacket(ctx context.Context, peerID string, ilpPacket []byte) ([]byte, error)
}

// LocalHandler delivers a Prepare destined for this connector's own address
// space (e.g. internal/gateway's HandleLocalPrepare, bound in cmd/connector)
// and returns the synchronous application result.
type LocalHandler interface {
	HandleLocal(ctx context.Context, p *oer.Prepare) (*oer.Fulfill, *oer.Reject)
}

// LocalSinkNextHop is the sentinel next-hop value meaning "deliver to this
// connector's own local handler" rather than forward to a peer.
const LocalSinkNextHop = "local"

// Config carries the per-connector forwarding parameters of spec.md §4.4.
type Config struct {
	SelfAddress        string
	FeeRatePermil      uint64 // fee = amount * FeeRatePermil / 1_000_000 (spec.md §9 resolution)
	MinForwardedAmount uint64
	MaxHoldTime        time.Duration
	MinHoldTime        time.Duration
}

// Handler implements the per-Prepare forwarding decision. It is fully
// reentrant: Handle carries no state across calls beyond its read-only
// collaborators (spec.md §4.4 Concurrency).
type Handler struct {
	cfg       Config
	routes    *routing.Table
	sender    Sender
	local     LocalHandler
	telemetry telemetry.Emitter
	log       *logrus.Entry
}

func NewHandler(cfg Config, routes *routing.Table, sender Sender, local LocalHandler, em telemetry.Emitter, log *logrus.Entry) *Handler {
	return &Handler{cfg: cfg, routes: routes, sender: sender, local: local, telemetry: em, log: log}
}

// rejectAt builds a local Reject triggered by this connector.
func (h *Handler) rejectAt(code, message string) *oer.Reject {
	h.telemetry.PacketOutcome("reject", code)
	return &oer.Reject{Code: code, TriggeredBy: h.cfg.SelfAddress, Message: message}
}

func (h *Handler) fulfill(f *oer.Fulfill) *oer.Fulfill {
	h.telemetry.PacketOutcome("fulfill", "")
	return f
}

// Handle processes one inbound Prepare received from peer peerID and returns
// exactly one of (Fulfill, Reject).
func (h *Handler) Handle(ctx context.Context, peerID string, p *oer.Prepare) (*oer.Fulfill, *oer.Reject) {
	now := time.Now()

	// 1. Expiry check.
	if !now.Before(p.ExpiresAt) {
		return nil, h.rejectAt(errs.CodeTransferTimedOut, "prepare expired on arrival")
	}

	// 2. Address validation.
	if !address.Valid(p.Destination) {
		return nil, h.rejectAt(errs.CodeInvalidPacket, "invalid destination address")
	}

	// 3. Route lookup.
	nextHop, ok := h.routes.Lookup(p.Destination)
	if !ok {
		return nil, h.rejectAt(errs.CodeUnreachable, "no route to destination")
	}

	// 4. Loop guard.
	if nextHop == peerID {
		return nil, h.rejectAt(errs.CodeUnreachable, "next hop equals receiving peer")
	}

	// 5. Local delivery.
	if nextHop == LocalSinkNextHop {
		if h.local == nil {
			return nil, h.rejectAt(errs.CodeUnreachable, "no local handler configured")
		}
		f, r := h.local.HandleLocal(ctx, p)
		if f != nil {
			return h.fulfill(f), nil
		}
		if r == nil {
			r = h.rejectAt(errs.CodeApplicationErrorF, "local handler returned no result")
		} else {
			h.telemetry.PacketOutcome("reject", r.Code)
		}
		return nil, r
	}

	// 6. Fee application.
	forwardedAmount := p.Amount - (p.Amount*h.cfg.FeeRatePermil)/1_000_000
	if forwardedAmount < h.cfg.MinForwardedAmount {
		return nil, h.rejectAt(errs.CodeInsufficientLiquidity, "forwarded amount below configured minimum")
	}

	// 7. Expiry shrink.
	forwardedExpiry := p.ExpiresAt
	if holdCap := now.Add(h.cfg.MaxHoldTime); holdCap.Before(forwardedExpiry) {
		forwardedExpiry = holdCap
	}
	if !forwardedExpiry.After(now.Add(h.cfg.MinHoldTime)) {
		return nil, h.rejectAt(errs.CodeTransferTimedOut, "insufficient hold time to forward")
	}

	// 8. Build and send the forwarded Prepare.
	forwarded := &oer.Prepare{
		Amount:             forwardedAmount,
		ExpiresAt:          forwardedExpiry,
		ExecutionCondition: p.ExecutionCondition,
		Destination:        p.Destination,
		Data:               p.Data,
	}
	wire, err := oer.SerializePrepare(forwarded)
	if err != nil {
		return nil, h.rejectAt(errs.CodeInvalidPacket, "failed to serialize forwarded prepare")
	}

	deadline := forwardedExpiry.Sub(now)
	sendCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	respWire, err := h.sender.SendPacket(sendCtx, nextHop, wire)
	if err != nil {
		// 10. Timeout / backpressure / transport error.
		if sendCtx.Err() != nil {
			return nil, h.rejectAt(errs.CodeTransferTimedOut, "forwarded prepare timed out")
		}
		if errors.Is(err, btp.ErrSendQueueFull) {
			h.log.WithField("peer", nextHop).Warn("packet: send queue full forwarding prepare")
			return nil, h.rejectAt(errs.CodeInsufficientLiquidity, "send queue full reaching next hop")
		}
		h.log.WithError(err).WithField("peer", nextHop).Warn("packet: transport error forwarding prepare")
		return nil, h.rejectAt(errs.CodePeerUnreachable, "transport error reaching next hop")
	}

	resp, err := oer.DeserializePacket(respWire)
	if err != nil {
		h.log.WithError(err).WithField("peer", nextHop).Warn("packet: malformed response from next hop")
		return nil, h.rejectAt(errs.CodeInternalError, "malformed response from next hop")
	}

	// 9. Await response.
	switch {
	case resp.Fulfill != nil:
		digest := sha256.Sum256(resp.Fulfill.Fulfillment[:])
		if digest != p.ExecutionCondition {
			h.log.WithField("peer", nextHop).Error("packet: fulfillment does not match execution condition, possible tampering")
			return nil, h.rejectAt(errs.CodeWrongCondition, "fulfillment does not match execution condition")
		}
		return h.fulfill(resp.Fulfill), nil
	case resp.Reject != nil:
		h.telemetry.PacketOutcome("reject", resp.Reject.Code)
		return nil, resp.Reject
	default:
		return nil, h.rejectAt(errs.CodeInternalError, "response carried neither fulfill nor reject")
	}
}


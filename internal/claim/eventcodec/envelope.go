// Package eventcodec wraps application content plus signed claims into event
// envelopes (spec.md §2 "Claim Event Codec & Store", supplemented per
// SPEC_FULL.md since the distilled spec only implies this via
// processReceivedClaimEvent). Grounded on the teacher's
// cross_chain_bridge.go envelope-plus-broadcast idiom (json.Marshal +
// Broadcast(topic, raw)).
package eventcodec

import (
	"encoding/json"
	"time"
)

// ClaimPayload is the wire form of a claim.Claim, kept decoupled from the
// claim package's Go types so the envelope format is stable independent of
// in-memory representation choices.
type ClaimPayload struct {
	Chain string          `json:"chain"`
	Data  json.RawMessage `json:"data"`
}

// UnsignedClaimRequest asks the receiving peer to countersign a claim update
// it has not yet seen signed (used when an inbound event references a claim
// the sender expects a signed response for).
type UnsignedClaimRequest struct {
	Chain     string `json:"chain"`
	ChannelID string `json:"channelId"`
	Amount    uint64 `json:"amount"`
	Nonce     uint64 `json:"nonce,omitempty"`
}

// Envelope wraps application content plus signed claims (spec.md §2).
//
// Per spec.md §9 Open Question, only the primary (first) claim is actively
// wrapped/signed on the outbound path in this implementation: Claims may
// carry multiple entries on decode, but Wrap only ever populates index 0.
// This is a documented scope limit, not a silent drop (DESIGN.md).
type Envelope struct {
	Content              json.RawMessage        `json:"content"`
	Claims               []ClaimPayload         `json:"claims,omitempty"`
	UnsignedClaimRequests []UnsignedClaimRequest `json:"unsignedClaimRequests,omitempty"`
	CreatedAt            time.Time              `json:"createdAt"`
}

// Wrap builds an envelope around content with a single primary claim
// (spec.md §9 Open Question resolution: only the primary claim is wrapped).
func Wrap(content any, primaryChain string, primaryClaim any, now time.Time) (*Envelope, error) {
	contentRaw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	env := &Envelope{Content: contentRaw, CreatedAt: now}
	if primaryClaim != nil {
		claimRaw, err := json.Marshal(primaryClaim)
		if err != nil {
			return nil, err
		}
		env.Claims = append(env.Claims, ClaimPayload{Chain: primaryChain, Data: claimRaw})
	}
	return env, nil
}

// Marshal serializes the envelope to JSON.
func Marshal(env *Envelope) ([]byte, error) { return json.Marshal(env) }

// Unmarshal parses a JSON envelope.
func Unmarshal(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

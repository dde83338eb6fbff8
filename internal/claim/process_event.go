package claim

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/alldoizcode/connector/internal/claim/eventcodec"
)

// EventResult is the result bundle returned by ProcessReceivedClaimEvent
// (spec.md §4.5): stored claims, extracted unsigned claim requests, signed
// responses generated for those requests, and non-fatal errors.
type EventResult struct {
	Stored    []*Claim
	Requested []eventcodec.UnsignedClaimRequest
	Responses []*Claim
	Errors    []error
}

// ProcessReceivedClaimEvent verifies and stores any claims attached to event,
// and signs responses for any unsigned claim requests it carries — provided
// this agent has a signer configured for the request's chain. peerAddresses
// supplies the expected signer per chain for verifying attached claims. No
// failure here ever propagates to the packet path (spec.md §4.5 Graceful
// degradation); every problem is appended to EventResult.Errors.
func (m *Manager) ProcessReceivedClaimEvent(ctx context.Context, peerID string, raw []byte, peerAddresses map[Chain]string) *EventResult {
	result := &EventResult{}

	env, err := eventcodec.Unmarshal(raw)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	for _, cp := range env.Claims {
		c, err := decodeClaimPayload(cp)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		expected := peerAddresses[c.Chain]
		ok, err := m.StoreClaim(ctx, peerID, c, expected)
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
		if ok {
			result.Stored = append(result.Stored, c)
		}
	}

	result.Requested = append(result.Requested, env.UnsignedClaimRequests...)
	for _, req := range env.UnsignedClaimRequests {
		chain := Chain(req.Chain)
		signed, err := m.GenerateClaim(ctx, peerID, chain, req.ChannelID, req.Amount, req.Nonce)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Responses = append(result.Responses, signed)
	}

	return result
}

func decodeClaimPayload(cp eventcodec.ClaimPayload) (*Claim, error) {
	switch Chain(cp.Chain) {
	case ChainEVM:
		var wire struct {
			ChannelID         string `json:"channelId"`
			TransferredAmount string `json:"transferredAmount"`
			Nonce             uint64 `json:"nonce"`
			LockedAmount      string `json:"lockedAmount"`
			LocksRoot         string `json:"locksRoot"`
			Signature         []byte `json:"signature"`
			Signer            string `json:"signer"`
		}
		if err := json.Unmarshal(cp.Data, &wire); err != nil {
			return nil, err
		}
		transferred, _ := new(big.Int).SetString(wire.TransferredAmount, 10)
		locked, _ := new(big.Int).SetString(wire.LockedAmount, 10)
		var channelID, locksRoot [32]byte
		copy(channelID[:], []byte(wire.ChannelID))
		copy(locksRoot[:], []byte(wire.LocksRoot))
		return &Claim{Chain: ChainEVM, EVM: &EVMClaim{
			ChannelID: channelID, TransferredAmount: transferred, Nonce: wire.Nonce,
			LockedAmount: locked, LocksRoot: locksRoot, Signature: wire.Signature, Signer: wire.Signer,
		}}, nil

	case ChainXRP:
		var wire struct {
			ChannelID string `json:"channelId"`
			Amount    uint64 `json:"amount"`
			Signature []byte `json:"signature"`
			Signer    []byte `json:"signer"`
		}
		if err := json.Unmarshal(cp.Data, &wire); err != nil {
			return nil, err
		}
		return &Claim{Chain: ChainXRP, XRP: &XRPClaim{
			ChannelID: CanonicalXRPChannelID(wire.ChannelID), Amount: wire.Amount, Signature: wire.Signature, Signer: wire.Signer,
		}}, nil

	case ChainAptos:
		var wire struct {
			ChannelOwner string `json:"channelOwner"`
			Amount       uint64 `json:"amount"`
			Nonce        uint64 `json:"nonce"`
			Signature    []byte `json:"signature"`
			Signer       []byte `json:"signer"`
		}
		if err := json.Unmarshal(cp.Data, &wire); err != nil {
			return nil, err
		}
		var owner [32]byte
		copy(owner[:], []byte(wire.ChannelOwner))
		return &Claim{Chain: ChainAptos, Aptos: &AptosClaim{
			ChannelOwner: owner, Amount: wire.Amount, Nonce: wire.Nonce, Signature: wire.Signature, Signer: wire.Signer,
		}}, nil

	default:
		return nil, errUnknownChain(cp.Chain)
	}
}

func errUnknownChain(chain string) error {
	return &unknownChainError{chain: chain}
}

type unknownChainError struct{ chain string }

func (e *unknownChainError) Error() string { return "claim: unknown chain " + e.chain }

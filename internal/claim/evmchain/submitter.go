package evmchain

import (
	"context"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Submitter is a narrow chain-submission seam (spec.md §1: blockchain SDKs
// are opaque providers). RawSubmit is supplied at construction and would be
// backed by go-ethereum's ethclient.SendTransaction against the deployed
// payment-channel contract in a real deployment.
type Submitter struct {
	RawSubmit func(ctx context.Context, channelID string, claim any, amount uint64) (txHash string, err error)
}

// Submit delegates to RawSubmit, synthesizing a deterministic pseudo tx hash
// when no RawSubmit callback is configured (used by tests and by agents that
// have not wired a real chain client).
func (s *Submitter) Submit(ctx context.Context, peerID, channelID string, claim any, amount uint64) (string, error) {
	if s.RawSubmit != nil {
		return s.RawSubmit(ctx, channelID, claim, amount)
	}
	h := ethcrypto.Keccak256Hash([]byte(fmt.Sprintf("%s|%s|%d", peerID, channelID, amount)))
	return h.Hex(), nil
}

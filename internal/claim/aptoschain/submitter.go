package aptoschain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Submitter is the Aptos chain-submission seam (spec.md §1). RawSubmit would
// be backed by an Aptos REST client in a real deployment.
type Submitter struct {
	RawSubmit func(ctx context.Context, channelID string, claim any, amount uint64) (txHash string, err error)
}

func (s *Submitter) Submit(ctx context.Context, peerID, channelID string, claim any, amount uint64) (string, error) {
	if s.RawSubmit != nil {
		return s.RawSubmit(ctx, channelID, claim, amount)
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", peerID, channelID, amount)))
	return hex.EncodeToString(h[:]), nil
}

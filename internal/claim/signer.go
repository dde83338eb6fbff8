package claim

import (
	"context"
	"math/big"
)

// EVMSigner produces EIP-712 signatures over payment-channel claims.
// Grounded on the Signer contract in
// Jason-chen-taiwan-arcSignv2/src/chainadapter/signer.go: implementations
// MUST verify they control the signing address and MUST NOT leak key
// material.
type EVMSigner interface {
	// Address returns the checksum EVM address this signer controls.
	Address() string
	// Sign produces a recoverable secp256k1 signature over the EIP-712
	// typed-data hash of the claim fields.
	Sign(ctx context.Context, channelID [32]byte, transferredAmount, lockedAmount *big.Int, locksRoot [32]byte, nonce uint64) (signature []byte, err error)
}

// XRPSigner produces Ed25519 signatures over XRP channel claims.
type XRPSigner interface {
	PublicKey() []byte
	Sign(ctx context.Context, channelID string, amount uint64) (signature []byte, err error)
}

// AptosSigner produces Ed25519 signatures over Aptos channel claims.
type AptosSigner interface {
	PublicKey() []byte
	Sign(ctx context.Context, channelOwner [32]byte, amount, nonce uint64) (signature []byte, err error)
}

// SignerSet groups the per-chain signers an agent has configured. A nil
// field means that chain is not configured for this agent (spec.md §4.5:
// generateClaim returns ∅ with a warning in that case).
type SignerSet struct {
	EVM   EVMSigner
	XRP   XRPSigner
	Aptos AptosSigner
}

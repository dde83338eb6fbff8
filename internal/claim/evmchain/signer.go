// Package evmchain provides the EVM chain signer and submitter stand-ins.
// Signing uses go-ethereum's EIP-712 typed-data hashing plus secp256k1
// primitives; submission is the narrow seam spec.md §1 treats as an opaque
// collaborator — a real deployment backs it with go-ethereum's ethclient
// against the deployed channel contract.
package evmchain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alldoizcode/connector/internal/claim"
)

// Signer implements claim.EVMSigner over a secp256k1 private key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewSigner derives the checksum address from key and returns a Signer.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (s *Signer) Address() string { return s.address }

// Sign produces a recoverable secp256k1 signature over the claim's EIP-712
// typed-data digest, the same one claim.VerifyClaimSignature recomputes via
// claim.EVMTypedDataHash.
func (s *Signer) Sign(ctx context.Context, channelID [32]byte, transferredAmount, lockedAmount *big.Int, locksRoot [32]byte, nonce uint64) ([]byte, error) {
	hash, err := claim.EVMTypedDataHash(channelID, transferredAmount, nonce, lockedAmount, locksRoot)
	if err != nil {
		return nil, fmt.Errorf("evm sign: %w", err)
	}
	sig, err := ethcrypto.Sign(hash[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("evm sign: %w", err)
	}
	return sig, nil
}

// Package aptoschain provides the Aptos chain signer and submitter
// stand-ins. Aptos payment-channel claims are signed with Ed25519, the
// native Aptos account key scheme.
package aptoschain

import (
	"context"
	"crypto/ed25519"

	"github.com/alldoizcode/connector/internal/claim"
)

// Signer implements claim.AptosSigner over an Ed25519 key pair.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner wraps an Ed25519 key pair as a Signer.
func NewSigner(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

func (s *Signer) PublicKey() []byte { return []byte(s.pub) }

// Sign signs the canonical (channelOwner, amount, nonce) message shared with
// the claim package's verifier.
func (s *Signer) Sign(ctx context.Context, channelOwner [32]byte, amount, nonce uint64) ([]byte, error) {
	msg := claim.AptosSigningMessage(channelOwner, amount, nonce)
	return ed25519.Sign(s.priv, msg), nil
}

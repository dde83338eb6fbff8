// Package xrpchain provides the XRP chain signer and submitter stand-ins.
// XRP payment-channel claims are signed with Ed25519 (stdlib crypto/ed25519 —
// justified in DESIGN.md: no example repo wires a third-party Ed25519
// library for bare sign/verify beyond what stdlib already covers).
package xrpchain

import (
	"context"
	"crypto/ed25519"

	"github.com/alldoizcode/connector/internal/claim"
)

// Signer implements claim.XRPSigner over an Ed25519 key pair.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner wraps an Ed25519 key pair as a Signer.
func NewSigner(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

func (s *Signer) PublicKey() []byte { return []byte(s.pub) }

// Sign signs the canonical (channelID, amount) message shared with the
// claim package's verifier.
func (s *Signer) Sign(ctx context.Context, channelID string, amount uint64) ([]byte, error) {
	canonical := claim.CanonicalXRPChannelID(channelID)
	msg := claim.XRPSigningMessage(canonical, amount)
	return ed25519.Sign(s.priv, msg), nil
}

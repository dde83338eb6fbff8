// Package claim implements the multi-chain signed-claim generation,
// verification, monotonicity, storage, and settlement dispatch described in
// spec.md §4.5. Chain variants are a closed sum type discriminated by Chain,
// never an open inheritance hierarchy (spec.md §9 DESIGN NOTES).
package claim

import "math/big"

// Chain identifies the blockchain a claim is denominated on.
type Chain string

const (
	ChainEVM    Chain = "evm"
	ChainXRP    Chain = "xrp"
	ChainAptos  Chain = "aptos"
)

// EVMClaim is a signed claim against an EVM payment channel (spec.md §3).
type EVMClaim struct {
	ChannelID         [32]byte
	TransferredAmount *big.Int
	Nonce             uint64
	LockedAmount      *big.Int
	LocksRoot         [32]byte
	Signature         []byte
	Signer            string // checksum or lowercase hex EVM address
}

// XRPClaim is a signed claim against an XRP payment channel (spec.md §3).
type XRPClaim struct {
	ChannelID string // 64 lowercase hex chars, canonical form (DESIGN.md)
	Amount    uint64 // drops
	Signature []byte
	Signer    []byte // Ed25519 public key
}

// AptosClaim is a signed claim against an Aptos payment channel (spec.md §3).
type AptosClaim struct {
	ChannelOwner [32]byte
	Amount       uint64 // octas
	Nonce        uint64
	Signature    []byte
	Signer       []byte // Ed25519 public key
}

// Claim is the tagged union over the three chain variants. Exactly one of
// EVM, XRP, Aptos is non-nil, selected by Chain.
type Claim struct {
	Chain Chain
	EVM   *EVMClaim
	XRP   *XRPClaim
	Aptos *AptosClaim
}

// ChannelID returns a stable string key for the claim's channel, used by the
// store for (peerId, chain, channelId) indexing.
func (c *Claim) ChannelID() string {
	switch c.Chain {
	case ChainEVM:
		return hexString(c.EVM.ChannelID[:])
	case ChainXRP:
		return c.XRP.ChannelID
	case ChainAptos:
		return hexString(c.Aptos.ChannelOwner[:])
	default:
		return ""
	}
}

func hexString(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0F]
	}
	return string(out)
}

package claim

import (
	"context"
	"crypto/ed25519"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// VerifyClaimSignature dispatches by claim.Chain (spec.md §4.5). EVM uses
// EIP-712 typed-data recovery with case-insensitive address comparison; XRP
// and Aptos verify raw Ed25519 signatures with exact public-key comparison.
func VerifyClaimSignature(ctx context.Context, c *Claim, expectedSigner string) bool {
	switch c.Chain {
	case ChainEVM:
		return verifyEVM(c.EVM, expectedSigner)
	case ChainXRP:
		return verifyEd25519(c.XRP.Signature, XRPSigningMessage(c.XRP.ChannelID, c.XRP.Amount), c.XRP.Signer, expectedSigner)
	case ChainAptos:
		return verifyEd25519(c.Aptos.Signature, AptosSigningMessage(c.Aptos.ChannelOwner, c.Aptos.Amount, c.Aptos.Nonce), c.Aptos.Signer, expectedSigner)
	default:
		return false
	}
}

func verifyEVM(c *EVMClaim, expectedSigner string) bool {
	if c == nil || len(c.Signature) != 65 {
		return false
	}
	hash, err := EVMTypedDataHash(c.ChannelID, c.TransferredAmount, c.Nonce, c.LockedAmount, c.LocksRoot)
	if err != nil {
		return false
	}
	// ecrecover expects a 64-byte [R||S] signature plus a 0/1 recovery id.
	sig := make([]byte, 65)
	copy(sig, c.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(hash[:], sig)
	if err != nil {
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pub).Hex()
	return strings.EqualFold(recovered, expectedSigner)
}

func verifyEd25519(signature, message, signer []byte, expectedSignerHex string) bool {
	if len(signature) != ed25519.SignatureSize || len(signer) != ed25519.PublicKeySize {
		return false
	}
	if !exactHexEqual(hexString(signer), expectedSignerHex) {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(signer), message, signature)
}

func exactHexEqual(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "0x") == strings.TrimPrefix(strings.ToLower(b), "0x")
}

func uint64To32(v uint64) []byte {
	out := make([]byte, 32)
	for i := 0; i < 8; i++ {
		out[31-i] = byte(v >> (8 * uint(i)))
	}
	return out
}

// XRPSigningMessage is the canonical byte sequence signed and verified for
// an XRP channel claim. Exported so internal/claim/xrpchain's signer
// produces signatures this package's verifier can check.
func XRPSigningMessage(channelID string, amount uint64) []byte {
	msg := make([]byte, 0, len(channelID)+8)
	msg = append(msg, []byte(channelID)...)
	msg = append(msg, uint64To32(amount)[24:]...)
	return msg
}

// AptosSigningMessage is the canonical byte sequence signed and verified for
// an Aptos channel claim. Exported so internal/claim/aptoschain's signer
// produces signatures this package's verifier can check.
func AptosSigningMessage(channelOwner [32]byte, amount, nonce uint64) []byte {
	msg := make([]byte, 0, 48)
	msg = append(msg, channelOwner[:]...)
	msg = append(msg, uint64To32(amount)[24:]...)
	msg = append(msg, uint64To32(nonce)[24:]...)
	return msg
}

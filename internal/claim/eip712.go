package claim

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// eip712Domain is the connector's EVM claim domain separator. It has no
// deployed contract behind it yet (spec.md §1: the channel contract is an
// out-of-scope collaborator), so VerifyingContract is the zero address; a
// real deployment would supply its own address and chain id here, and both
// the signer and the verifier must agree on whatever values are used.
var eip712Domain = apitypes.TypedDataDomain{
	Name:              "ILPConnectorPaymentChannel",
	Version:           "1",
	ChainId:           ethmath.NewHexOrDecimal256(1),
	VerifyingContract: "0x0000000000000000000000000000000000000000",
}

var eip712ClaimTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Claim": []apitypes.Type{
		{Name: "channelId", Type: "bytes32"},
		{Name: "transferredAmount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "lockedAmount", Type: "uint256"},
		{Name: "locksRoot", Type: "bytes32"},
	},
}

// EVMTypedDataHash builds the EIP-712 "Claim" typed-data value for a payment
// channel claim and returns its signing hash via go-ethereum's own
// TypedDataAndHash (the "\x19\x01" domain-separator-prefixed Keccak256
// digest), grounded on the pack's x402 facilitator use of
// signer/core/apitypes. Shared by internal/claim/evmchain's Signer and this
// package's verifier so both sides hash identically.
func EVMTypedDataHash(channelID [32]byte, transferredAmount *big.Int, nonce uint64, lockedAmount *big.Int, locksRoot [32]byte) ([32]byte, error) {
	if transferredAmount == nil {
		transferredAmount = new(big.Int)
	}
	if lockedAmount == nil {
		lockedAmount = new(big.Int)
	}
	typedData := apitypes.TypedData{
		Types:       eip712ClaimTypes,
		PrimaryType: "Claim",
		Domain:      eip712Domain,
		Message: apitypes.TypedDataMessage{
			"channelId":         hexutil.Encode(channelID[:]),
			"transferredAmount": (*ethmath.HexOrDecimal256)(transferredAmount),
			"nonce":             ethmath.NewHexOrDecimal256(int64(nonce)),
			"lockedAmount":      (*ethmath.HexOrDecimal256)(lockedAmount),
			"locksRoot":         hexutil.Encode(locksRoot[:]),
		},
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return [32]byte{}, fmt.Errorf("eip712: hash claim typed data: %w", err)
	}
	var out [32]byte
	copy(out[:], hash)
	return out, nil
}

package claim

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/alldoizcode/connector/internal/errs"
	"github.com/alldoizcode/connector/internal/store"
	"github.com/alldoizcode/connector/internal/telemetry"
)

// ChainSubmitter submits a stored claim on-chain for settlement. The real
// implementation is an out-of-scope collaborator (spec.md §1: "blockchain
// SDKs... treated as opaque sign/verify/submit providers"); this interface is
// the seam the core depends on.
type ChainSubmitter interface {
	Submit(ctx context.Context, peerID, channelID string, claim any, amount uint64) (txHash string, err error)
}

// Manager implements spec.md §4.5. It never raises into the packet path:
// every public entry point returns a result/bool and logs failures at most.
type Manager struct {
	log       *logrus.Entry
	telemetry telemetry.Emitter
	store     store.ClaimStore
	signers   SignerSet
	submitters map[Chain]ChainSubmitter
	deposits  DepositLookup
}

// DepositLookup reports the on-chain channel deposit for bounds checking
// (spec.md §4.5 verifyAmountWithinBounds). An out-of-scope collaborator.
type DepositLookup interface {
	ChannelDeposit(chain Chain, peerID, channelID string) (uint64, bool)
}

// NewManager constructs a claim Manager with its dependencies injected
// (no package-level singleton, per spec.md §9 DESIGN NOTES).
func NewManager(log *logrus.Entry, em telemetry.Emitter, st store.ClaimStore, signers SignerSet, submitters map[Chain]ChainSubmitter, deposits DepositLookup) *Manager {
	return &Manager{log: log, telemetry: em, store: st, signers: signers, submitters: submitters, deposits: deposits}
}

// GenerateClaim signs a claim updating the cumulative payable balance to
// peerID on chain/channelID. EVM/Aptos require nonce; XRP ignores it. It
// returns (nil, err) with the error logged and non-fatal when the chain is
// not configured for this agent or signing fails — the caller continues to
// forward packets without claim exchange (spec.md §4.5 Graceful degradation).
func (m *Manager) GenerateClaim(ctx context.Context, peerID string, chain Chain, channelID string, amount uint64, nonce uint64) (*Claim, error) {
	switch chain {
	case ChainEVM:
		if m.signers.EVM == nil {
			m.log.WithField("chain", chain).Warn("claim: chain not configured for this agent")
			return nil, errs.NewClaimError(errs.ClaimChainNotConfigured, "evm signer not configured")
		}
		var channelIDBytes [32]byte
		copy(channelIDBytes[:], []byte(channelID))
		transferred := new(big.Int).SetUint64(amount)
		locked := new(big.Int).SetUint64(amount)
		var locksRoot [32]byte
		sig, err := m.signers.EVM.Sign(ctx, channelIDBytes, transferred, locked, locksRoot, nonce)
		if err != nil {
			m.log.WithError(err).Warn("claim: evm signing failed")
			return nil, errs.NewClaimError(errs.ClaimSignatureInvalid, err.Error())
		}
		return &Claim{Chain: ChainEVM, EVM: &EVMClaim{
			ChannelID: channelIDBytes, TransferredAmount: transferred, Nonce: nonce,
			LockedAmount: locked, LocksRoot: locksRoot, Signature: sig, Signer: m.signers.EVM.Address(),
		}}, nil

	case ChainXRP:
		if m.signers.XRP == nil {
			m.log.WithField("chain", chain).Warn("claim: chain not configured for this agent")
			return nil, errs.NewClaimError(errs.ClaimChainNotConfigured, "xrp signer not configured")
		}
		canonical := CanonicalXRPChannelID(channelID)
		sig, err := m.signers.XRP.Sign(ctx, canonical, amount)
		if err != nil {
			m.log.WithError(err).Warn("claim: xrp signing failed")
			return nil, errs.NewClaimError(errs.ClaimSignatureInvalid, err.Error())
		}
		return &Claim{Chain: ChainXRP, XRP: &XRPClaim{
			ChannelID: canonical, Amount: amount, Signature: sig, Signer: m.signers.XRP.PublicKey(),
		}}, nil

	case ChainAptos:
		if m.signers.Aptos == nil {
			m.log.WithField("chain", chain).Warn("claim: chain not configured for this agent")
			return nil, errs.NewClaimError(errs.ClaimChainNotConfigured, "aptos signer not configured")
		}
		var owner [32]byte
		copy(owner[:], []byte(channelID))
		sig, err := m.signers.Aptos.Sign(ctx, owner, amount, nonce)
		if err != nil {
			m.log.WithError(err).Warn("claim: aptos signing failed")
			return nil, errs.NewClaimError(errs.ClaimSignatureInvalid, err.Error())
		}
		return &Claim{Chain: ChainAptos, Aptos: &AptosClaim{
			ChannelOwner: owner, Amount: amount, Nonce: nonce, Signature: sig, Signer: m.signers.Aptos.PublicKey(),
		}}, nil
	default:
		return nil, errs.NewClaimError(errs.ClaimChainNotConfigured, "unknown chain")
	}
}

// CanonicalXRPChannelID enforces the store's canonical channel-id form:
// lowercase hex (spec.md §9 Open Question, resolved in SPEC_FULL.md §3).
func CanonicalXRPChannelID(channelID string) string {
	out := make([]byte, len(channelID))
	for i, c := range []byte(channelID) {
		if c >= 'A' && c <= 'F' {
			out[i] = c + ('a' - 'A')
		} else {
			out[i] = c
		}
	}
	return string(out)
}

// VerifyMonotonicity checks EVM/Aptos nonce or XRP amount strictly increases
// versus the stored claim for (peerID, chain, channelID). If no prior claim
// exists, any claim is acceptable.
func (m *Manager) VerifyMonotonicity(peerID string, c *Claim) bool {
	key := store.ClaimKey{PeerID: peerID, Chain: string(c.Chain), ChannelID: c.ChannelID()}
	current, ok := m.store.Latest(key)
	if !ok {
		return true
	}
	return isNewerClaim(current, c)
}

func isNewerClaim(current any, candidate any) bool {
	cur, ok := current.(*Claim)
	if !ok {
		return true
	}
	cand, ok := candidate.(*Claim)
	if !ok {
		return false
	}
	switch cand.Chain {
	case ChainEVM:
		return cand.EVM.Nonce > cur.EVM.Nonce
	case ChainXRP:
		return cand.XRP.Amount > cur.XRP.Amount
	case ChainAptos:
		return cand.Aptos.Nonce > cur.Aptos.Nonce
	default:
		return false
	}
}

// VerifyAmountWithinBounds rejects a claim whose cumulative amount exceeds
// the on-chain channel deposit (spec.md §4.5; logged at error severity as
// potential fraud by the caller).
func VerifyAmountWithinBounds(c *Claim, channelDeposit uint64) bool {
	switch c.Chain {
	case ChainEVM:
		return c.EVM.TransferredAmount.Cmp(new(big.Int).SetUint64(channelDeposit)) <= 0
	case ChainXRP:
		return c.XRP.Amount <= channelDeposit
	case ChainAptos:
		return c.Aptos.Amount <= channelDeposit
	default:
		return false
	}
}

// StoreClaim runs the verify-then-store sequence for (peerID, chain,
// channelID): signature check, deposit bound check, then a compare-and-swap
// store write that applies the monotonicity check atomically under the
// store's per-key lock. It never returns an
// error that should reach the packet path; failures are reported via the
// returned bool plus a logged reason.
func (m *Manager) StoreClaim(ctx context.Context, peerID string, c *Claim, expectedSigner string) (bool, error) {
	if !VerifyClaimSignature(ctx, c, expectedSigner) {
		m.log.WithFields(logrus.Fields{"peer": peerID, "chain": c.Chain}).Warn("claim: signature invalid")
		return false, errs.NewClaimError(errs.ClaimSignatureInvalid, "signature verification failed")
	}
	deposit, hasDeposit := uint64(0), false
	if m.deposits != nil {
		deposit, hasDeposit = m.deposits.ChannelDeposit(c.Chain, peerID, c.ChannelID())
	}
	if hasDeposit && !VerifyAmountWithinBounds(c, deposit) {
		m.log.WithFields(logrus.Fields{"peer": peerID, "chain": c.Chain}).Error("claim: amount exceeds on-chain deposit, potential fraud")
		return false, errs.NewClaimError(errs.ClaimAmountExceedsDeposit, "claim exceeds channel deposit")
	}

	key := store.ClaimKey{PeerID: peerID, Chain: string(c.Chain), ChannelID: c.ChannelID()}
	stored := m.store.CompareAndStore(key, c, isNewerClaim)
	if !stored {
		m.log.WithFields(logrus.Fields{"peer": peerID, "chain": c.Chain}).Warn("claim: stale, not stored")
		return false, errs.NewClaimError(errs.ClaimStaleNonce, "claim is not newer than the stored claim")
	}
	return true, nil
}

// SettlementResult mirrors the CLAIM_SETTLEMENT_SUCCESS/FAILED events of
// spec.md §4.5.
type SettlementResult struct {
	Success bool
	TxHash  string
	Error   string
}

// Settle retrieves the latest stored claim for (peerID, chain, channelID)
// and invokes the chain-specific submitter. The packet plane is unaffected
// by the outcome either way.
func (m *Manager) Settle(ctx context.Context, peerID string, chain Chain, channelID string, amount uint64) SettlementResult {
	if chain == ChainXRP {
		channelID = CanonicalXRPChannelID(channelID)
	}
	key := store.ClaimKey{PeerID: peerID, Chain: string(chain), ChannelID: channelID}
	latest, ok := m.store.Latest(key)
	if !ok {
		m.telemetry.ClaimSettlement(peerID, string(chain), false)
		return SettlementResult{Success: false, Error: "No stored claim available"}
	}
	submitter, ok := m.submitters[chain]
	if !ok {
		m.telemetry.ClaimSettlement(peerID, string(chain), false)
		return SettlementResult{Success: false, Error: "no submitter configured for chain " + string(chain)}
	}
	txHash, err := submitter.Submit(ctx, peerID, channelID, latest, amount)
	if err != nil {
		m.telemetry.ClaimSettlement(peerID, string(chain), false)
		return SettlementResult{Success: false, Error: err.Error()}
	}
	m.telemetry.ClaimSettlement(peerID, string(chain), true)
	return SettlementResult{Success: true, TxHash: txHash}
}

package claim

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/alldoizcode/connector/internal/claim/evmchain"
	"github.com/alldoizcode/connector/internal/store"
	"github.com/alldoizcode/connector/internal/telemetry"
)

func newTestManager(t *testing.T, signers SignerSet, submitters map[Chain]ChainSubmitter) *Manager {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	return NewManager(log, telemetry.Noop{}, store.NewMemoryClaimStore(), signers, submitters, nil)
}

func mustEVMKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestGenerateClaimEVMAndVerify(t *testing.T) {
	key := mustEVMKey(t)
	signer := evmchain.NewSigner(key)
	mgr := newTestManager(t, SignerSet{EVM: signer}, nil)

	c, err := mgr.GenerateClaim(context.Background(), "peerA", ChainEVM, "channel-1", 1000, 5)
	require.NoError(t, err)
	require.True(t, VerifyClaimSignature(context.Background(), c, signer.Address()))
	require.False(t, VerifyClaimSignature(context.Background(), c, "0x0000000000000000000000000000000000000000"))
}

func TestGenerateClaimChainNotConfigured(t *testing.T) {
	mgr := newTestManager(t, SignerSet{}, nil)
	c, err := mgr.GenerateClaim(context.Background(), "peerA", ChainEVM, "channel-1", 1000, 1)
	require.Error(t, err)
	require.Nil(t, c)
}

func TestStaleClaimRejectedStoreUnchanged(t *testing.T) {
	key := mustEVMKey(t)
	signer := evmchain.NewSigner(key)
	mgr := newTestManager(t, SignerSet{EVM: signer}, nil)

	ctx := context.Background()
	latest, err := mgr.GenerateClaim(ctx, "peerA", ChainEVM, "channel-1", 10_000, 10)
	require.NoError(t, err)
	stored, err := mgr.StoreClaim(ctx, "peerA", latest, signer.Address())
	require.NoError(t, err)
	require.True(t, stored)

	stale, err := mgr.GenerateClaim(ctx, "peerA", ChainEVM, "channel-1", 5_000, 5)
	require.NoError(t, err)
	stored, err = mgr.StoreClaim(ctx, "peerA", stale, signer.Address())
	require.Error(t, err)
	require.False(t, stored)

	key2 := store.ClaimKey{PeerID: "peerA", Chain: string(ChainEVM), ChannelID: latest.ChannelID()}
	current, ok := mgr.store.Latest(key2)
	require.True(t, ok)
	require.Equal(t, latest.EVM.Nonce, current.(*Claim).EVM.Nonce)
}

func TestSettlementWithoutStoredClaim(t *testing.T) {
	mgr := newTestManager(t, SignerSet{}, map[Chain]ChainSubmitter{})
	result := mgr.Settle(context.Background(), "peerA", ChainEVM, "channel-1", 1000)
	require.False(t, result.Success)
	require.Equal(t, "No stored claim available", result.Error)
}

type xrpTestSigner struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func (s xrpTestSigner) PublicKey() []byte { return []byte(s.pub) }
func (s xrpTestSigner) Sign(ctx context.Context, channelID string, amount uint64) ([]byte, error) {
	msg := XRPSigningMessage(CanonicalXRPChannelID(channelID), amount)
	return ed25519.Sign(s.priv, msg), nil
}

func TestXRPMonotonicityByAmount(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer := xrpTestSigner{priv: priv, pub: pub}
	expectedSigner := hex.EncodeToString(pub)
	mgr := newTestManager(t, SignerSet{XRP: signer}, nil)
	ctx := context.Background()

	c1, err := mgr.GenerateClaim(ctx, "peerB", ChainXRP, "ABCDEF0123456789", 100, 0)
	require.NoError(t, err)
	ok, err := mgr.StoreClaim(ctx, "peerB", c1, expectedSigner)
	require.NoError(t, err)
	require.True(t, ok)

	c2, err := mgr.GenerateClaim(ctx, "peerB", ChainXRP, "ABCDEF0123456789", 50, 0)
	require.NoError(t, err)
	ok, err = mgr.StoreClaim(ctx, "peerB", c2, expectedSigner)
	require.Error(t, err)
	require.False(t, ok)

	c3, err := mgr.GenerateClaim(ctx, "peerB", ChainXRP, "ABCDEF0123456789", 200, 0)
	require.NoError(t, err)
	ok, err = mgr.StoreClaim(ctx, "peerB", c3, expectedSigner)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanonicalXRPChannelIDIsLowercase(t *testing.T) {
	require.Equal(t, "abcdef0123456789", CanonicalXRPChannelID("ABCDEF0123456789"))
}

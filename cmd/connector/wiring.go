package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/alldoizcode/connector/internal/admin"
	"github.com/alldoizcode/connector/internal/btp"
	"github.com/alldoizcode/connector/internal/claim"
	"github.com/alldoizcode/connector/internal/claim/aptoschain"
	"github.com/alldoizcode/connector/internal/claim/evmchain"
	"github.com/alldoizcode/connector/internal/claim/xrpchain"
	"github.com/alldoizcode/connector/internal/config"
	"github.com/alldoizcode/connector/internal/gateway"
	"github.com/alldoizcode/connector/internal/oer"
	"github.com/alldoizcode/connector/internal/packet"
	"github.com/alldoizcode/connector/internal/routing"
	"github.com/alldoizcode/connector/internal/store"
	"github.com/alldoizcode/connector/internal/subscription"
	"github.com/alldoizcode/connector/internal/telemetry"
)

// node bundles every wired component for a running connector process.
type node struct {
	log     *logrus.Entry
	cfg     *config.Config
	routes  *routing.Table
	fabric  *btp.Fabric
	claims  *claim.Manager
	handler *packet.Handler
	subs    *subscription.Manager
	gw      *gateway.Gateway
	admin   *admin.Surface
	router  http.Handler
}

func newLogger(level string) *logrus.Entry {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logrus.NewEntry(l)
}

// localHandlerAdapter routes locally-destined Prepares to the messaging
// gateway's reply path when private messaging is enabled; otherwise every
// local delivery fails closed with F99 (no application bound).
type localHandlerAdapter struct {
	gw *gateway.Gateway
}

func (a localHandlerAdapter) HandleLocal(ctx context.Context, p *oer.Prepare) (*oer.Fulfill, *oer.Reject) {
	if a.gw == nil {
		return nil, &oer.Reject{Code: "F99", Message: "local delivery not bound to an application handler"}
	}
	return a.gw.HandleLocalPrepare(ctx, p)
}

// buildNode wires every component from cfg, following the teacher's explicit
// constructor-injection shape (spec.md §9: no component acquires a
// collaborator from a package-level registry).
func buildNode(cfg *config.Config) (*node, error) {
	log := newLogger(cfg.Logging.Level)
	em := telemetry.NewPrometheusEmitter(prometheus.DefaultRegisterer)

	routes := routing.New()
	for _, rt := range cfg.Routes {
		routes.Add(rt.Prefix, rt.NextHop, rt.Priority)
	}

	claimStore := store.NewMemoryClaimStore()
	signers := loadSigners(log)
	claims := claim.NewManager(log, em, claimStore, signers, defaultSubmitters(), nil)

	subs := subscription.NewManager(cfg.Messaging.SubscriptionCap)
	var gw *gateway.Gateway
	if cfg.Messaging.Enabled {
		gw = gateway.NewGateway(log, subs)
	}

	handlerCfg := packet.Config{
		SelfAddress:        cfg.SelfAddress,
		FeeRatePermil:      cfg.Forwarding.FeeRatePermil,
		MinForwardedAmount: cfg.Forwarding.MinForwardedAmount,
		MaxHoldTime:        time.Duration(cfg.Forwarding.MaxHoldTimeMS) * time.Millisecond,
		MinHoldTime:        time.Duration(cfg.Forwarding.MinHoldTimeMS) * time.Millisecond,
	}
	// fabric and handler are mutually dependent (the handler forwards through
	// the fabric; the fabric delivers inbound messages to the handler), so
	// the fabric's onMessage closure captures the not-yet-assigned handler
	// variable and only calls into it once buildNode has finished wiring.
	var handler *packet.Handler
	fabric := btp.NewFabric(log, em, func(conn *btp.Connection, f *btp.Frame) {
		dispatchInbound(handler, log)(conn, f)
	})
	handler = packet.NewHandler(handlerCfg, routes, fabric, localHandlerAdapter{gw: gw}, em, log)

	auth := buildAuthenticator(cfg)
	btpServer := btp.NewServer(log, auth, fabric.Accept, func(conn *btp.Connection, f *btp.Frame) {
		dispatchInbound(handler, log)(conn, f)
	})

	adminSurface := admin.NewSurface(log, routes, fabric, claims)
	for _, p := range cfg.Peers {
		if p.Secret == "" {
			log.WithField("peer", p.ID).Warn("connector: peer configured with no secret, skipping auto-dial")
			continue
		}
		if err := adminSurface.AddPeer(context.Background(), btp.PeerTarget{PeerID: p.ID, URL: p.URL, Secret: []byte(p.Secret)}); err != nil {
			log.WithError(err).WithField("peer", p.ID).Warn("connector: failed to schedule peer dial")
		}
	}

	r := chi.NewRouter()
	r.Handle("/btp", btpServer)
	r.Handle("/metrics", promhttp.Handler())
	if gw != nil {
		r.Mount("/messaging", gw.Router())
	}
	// Admin HTTP surface (spec.md §6): a thin go-chi binding over the same
	// admin.Surface the CLI commands use, gated behind its own flag or
	// ENABLE_PRIVATE_MESSAGING so a connector already running the messaging
	// edge gets admin reachability for free.
	if cfg.Admin.HTTPEnabled || cfg.Messaging.Enabled {
		r.Mount("/admin", adminSurface.Router())
	}

	return &node{
		log: log, cfg: cfg, routes: routes, fabric: fabric, claims: claims,
		handler: handler, subs: subs, gw: gw, admin: adminSurface, router: r,
	}, nil
}

// defaultSubmitters wires every chain's ChainSubmitter stand-in (spec.md §1:
// blockchain SDKs are opaque providers; RawSubmit is left unconfigured here
// and falls back to each submitter's deterministic pseudo tx hash until a
// real chain client is supplied). Shared by buildNode and buildSurface so
// both the long-lived serve process and the one-shot settle CLI can actually
// reach InitiateSettlement's happy path.
func defaultSubmitters() map[claim.Chain]claim.ChainSubmitter {
	return map[claim.Chain]claim.ChainSubmitter{
		claim.ChainEVM:   &evmchain.Submitter{},
		claim.ChainXRP:   &xrpchain.Submitter{},
		claim.ChainAptos: &aptoschain.Submitter{},
	}
}

func buildAuthenticator(cfg *config.Config) *btp.StaticAuthenticator {
	secrets := make(map[string][]byte, len(cfg.Peers))
	for _, p := range cfg.Peers {
		if p.Secret != "" {
			secrets[p.ID] = []byte(p.Secret)
		}
	}
	return btp.NewStaticAuthenticator(secrets)
}

// dispatchInbound adapts an accepted or dialed connection's inbound MESSAGE
// frames to the packet handler, replying on the same connection with the
// correlated RESPONSE frame carrying the resulting Fulfill/Reject.
func dispatchInbound(handler *packet.Handler, log *logrus.Entry) btp.MessageHandler {
	return func(conn *btp.Connection, f *btp.Frame) {
		if f.Type != btp.TypeMessage || f.ILPPacket == nil {
			return
		}
		any, err := oer.DeserializePacket(f.ILPPacket)
		if err != nil || any.Prepare == nil {
			log.WithError(err).Warn("connector: discarding malformed or non-prepare inbound message")
			return
		}
		ctx, cancel := context.WithDeadline(context.Background(), any.Prepare.ExpiresAt)
		defer cancel()
		fulfill, reject := handler.Handle(ctx, conn.PeerID, any.Prepare)
		var replyWire []byte
		if fulfill != nil {
			replyWire, err = oer.SerializeFulfill(fulfill)
		} else {
			replyWire, err = oer.SerializeReject(reject)
		}
		if err != nil {
			log.WithError(err).Warn("connector: failed to serialize reply packet")
			return
		}
		if err := conn.SendResponse(ctx, &btp.Frame{Type: btp.TypeResponse, RequestID: f.RequestID, ILPPacket: replyWire}); err != nil {
			log.WithError(err).WithField("peer", conn.PeerID).Warn("connector: failed to send reply")
		}
	}
}

func loadSigners(log *logrus.Entry) claim.SignerSet {
	var signers claim.SignerSet
	if hexKey := os.Getenv("EVM_PRIVATE_KEY_HEX"); hexKey != "" {
		key, err := ethcrypto.HexToECDSA(hexKey)
		if err != nil {
			log.WithError(err).Warn("connector: invalid EVM_PRIVATE_KEY_HEX, evm signing disabled")
		} else {
			signers.EVM = evmchain.NewSigner(key)
		}
	}
	if hexSeed := os.Getenv("XRP_ED25519_SEED_HEX"); hexSeed != "" {
		if signer, err := ed25519SignerFromHex(hexSeed); err != nil {
			log.WithError(err).Warn("connector: invalid XRP_ED25519_SEED_HEX, xrp signing disabled")
		} else {
			signers.XRP = xrpchain.NewSigner(signer)
		}
	}
	if hexSeed := os.Getenv("APTOS_ED25519_SEED_HEX"); hexSeed != "" {
		if signer, err := ed25519SignerFromHex(hexSeed); err != nil {
			log.WithError(err).Warn("connector: invalid APTOS_ED25519_SEED_HEX, aptos signing disabled")
		} else {
			signers.Aptos = aptoschain.NewSigner(signer)
		}
	}
	return signers
}

func ed25519SignerFromHex(hexSeed string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d hex-decoded bytes", ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

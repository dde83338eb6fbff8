package btp

import (
	"context"
	"crypto/subtle"
)

// AuthProtocolName is the protocol-data entry name carrying the shared
// peering secret in the initial MESSAGE frame of a connection (spec.md §4.3).
const AuthProtocolName = "auth_token"

// PeerAuthenticator verifies a peer's shared secret on connect. Implemented
// by StaticAuthenticator, which cmd/connector builds from internal/config's
// peer table; kept as a seam here so btp has no dependency on the config
// package.
type PeerAuthenticator interface {
	Authenticate(ctx context.Context, peerID string, secret []byte) bool
}

// StaticAuthenticator authenticates against a fixed peerID -> secret map,
// loaded once at startup from BTP_PEER_<PEER_ID>_SECRET env entries.
type StaticAuthenticator struct {
	secrets map[string][]byte
}

func NewStaticAuthenticator(secrets map[string][]byte) *StaticAuthenticator {
	return &StaticAuthenticator{secrets: secrets}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context, peerID string, secret []byte) bool {
	want, ok := a.secrets[peerID]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(want, secret) == 1
}

// authFrame builds the MESSAGE frame a dialing client sends immediately
// after the WebSocket upgrade completes.
func authFrame(requestID uint32, peerID string, secret []byte) *Frame {
	return &Frame{
		Type:      TypeMessage,
		RequestID: requestID,
		ProtocolData: []ProtocolDataEntry{
			{ProtocolName: AuthProtocolName, ContentType: 0, Data: secret},
			{ProtocolName: "auth_peer_id", ContentType: 0, Data: []byte(peerID)},
		},
	}
}

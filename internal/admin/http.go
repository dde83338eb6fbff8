package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alldoizcode/connector/internal/btp"
	"github.com/alldoizcode/connector/internal/claim"
	"github.com/alldoizcode/connector/internal/errs"
	"github.com/alldoizcode/connector/internal/oer"
)

// Router returns an HTTP handler exposing every Surface operation (spec.md
// §6: add/remove peer, add/remove route, query peer status, submit outbound
// Prepare, initiate settlement), mountable standalone or under a larger
// chi.Router in cmd/connector. Routed with go-chi to match the rest of the
// connector's HTTP surface (internal/gateway.Router).
func (s *Surface) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/peers", s.handleAddPeer)
	r.Delete("/peers/{peerID}", s.handleRemovePeer)
	r.Get("/peers/{peerID}", s.handlePeerStatus)
	r.Post("/routes", s.handleAddRoute)
	r.Delete("/routes/{prefix}", s.handleRemoveRoute)
	r.Post("/prepare", s.handleSubmitOutboundPrepare)
	r.Post("/settlement", s.handleInitiateSettlement)
	return r
}

type addPeerRequest struct {
	PeerID string `json:"peerId"`
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

func (s *Surface) handleAddPeer(w http.ResponseWriter, r *http.Request) {
	var req addPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, errs.NewAdminError(errs.AdminBadRequest, "invalid request body"))
		return
	}
	err := s.AddPeer(r.Context(), btp.PeerTarget{PeerID: req.PeerID, URL: req.URL, Secret: []byte(req.Secret)})
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"peerId": req.PeerID})
}

func (s *Surface) handleRemovePeer(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peerID")
	if err := s.RemovePeer(peerID); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Surface) handlePeerStatus(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peerID")
	writeJSON(w, http.StatusOK, s.PeerStatus(peerID))
}

type addRouteRequest struct {
	Prefix   string `json:"prefix"`
	NextHop  string `json:"nextHop"`
	Priority int    `json:"priority"`
}

func (s *Surface) handleAddRoute(w http.ResponseWriter, r *http.Request) {
	var req addRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, errs.NewAdminError(errs.AdminBadRequest, "invalid request body"))
		return
	}
	if err := s.AddRoute(req.Prefix, req.NextHop, req.Priority); err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (s *Surface) handleRemoveRoute(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	if err := s.RemoveRoute(prefix); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Surface) handleSubmitOutboundPrepare(w http.ResponseWriter, r *http.Request) {
	var p oer.Prepare
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeAdminError(w, errs.NewAdminError(errs.AdminBadRequest, "invalid request body"))
		return
	}
	fulfill, reject, err := s.SubmitOutboundPrepare(r.Context(), &p)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Fulfill *oer.Fulfill `json:"fulfill,omitempty"`
		Reject  *oer.Reject  `json:"reject,omitempty"`
	}{fulfill, reject})
}

type settlementRequest struct {
	PeerID    string     `json:"peerId"`
	Chain     claim.Chain `json:"chain"`
	ChannelID string     `json:"channelId"`
	Amount    uint64     `json:"amount"`
}

func (s *Surface) handleInitiateSettlement(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, errs.NewAdminError(errs.AdminBadRequest, "invalid request body"))
		return
	}
	result := s.InitiateSettlement(r.Context(), req.PeerID, req.Chain, req.ChannelID, req.Amount)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAdminError maps an *errs.AdminError's Kind to the matching HTTP
// status; any other error (none of Surface's methods currently return one)
// falls back to 500.
func writeAdminError(w http.ResponseWriter, err error) {
	adminErr, ok := err.(*errs.AdminError)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch adminErr.Kind {
	case errs.AdminBadRequest:
		status = http.StatusBadRequest
	case errs.AdminNotFound:
		status = http.StatusNotFound
	case errs.AdminConflict:
		status = http.StatusConflict
	case errs.AdminServiceUnavailable:
		status = http.StatusServiceUnavailable
	case errs.AdminTimeout:
		status = http.StatusGatewayTimeout
	case errs.AdminInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": adminErr.Msg})
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"cloak-engine/internal/auth"
	"cloak-engine/internal/engine"
	"cloak-engine/internal/fingerprint"
	"cloak-engine/internal/observability"
	"cloak-engine/internal/storage"
	"cloak-engine/internal/telemetry"
)

type Handler struct {
	Orch        *engine.Orchestrator
	Store       storage.Store
	FpCache     fingerprint.Cache
	Sink        *telemetry.Sink
	Auth        *auth.Service
	FallbackURL string
}

func NewHandler(orch *engine.Orchestrator, store storage.Store, fpCache fingerprint.Cache,
	sink *telemetry.Sink, authSvc *auth.Service, fallbackURL string) *Handler {
	return &Handler{
		Orch:        orch,
		Store:       store,
		FpCache:     fpCache,
		Sink:        sink,
		Auth:        authSvc,
		FallbackURL: fallbackURL,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type decideResponse struct {
	TargetURL      string `json:"target_url,omitempty"`
	Content        string `json:"content,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	DecisionReason string `json:"decision_reason"`
}

// Decide is the edge-facing endpoint. It must answer 2xx with a safe
// target even when the body is garbage or anything internal fails.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var req engine.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("malformed decide request; serving fallback")
		writeJSON(w, http.StatusOK, decideResponse{
			TargetURL:      h.FallbackURL,
			DecisionReason: "malformed_request",
		})
		return
	}

	res := h.Orch.Decide(r.Context(), req)
	writeJSON(w, http.StatusOK, decideResponse{
		TargetURL:      res.TargetURL,
		Content:        res.Content,
		ContentType:    res.ContentType,
		DecisionReason: res.Reason,
	})
}

type fingerprintResponse struct {
	FingerprintHash string `json:"fingerprint_hash"`
	IsCached        bool   `json:"is_cached"`
}

// Fingerprint canonicalizes a raw signal bag into a stable hash and checks
// the repeat-visitor memo.
func (h *Handler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	var signals map[string]any
	if err := json.NewDecoder(r.Body).Decode(&signals); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	hash, err := fingerprint.Canonical(signals)
	if err != nil {
		writeError(w, http.StatusBadRequest, "at least one signal is required")
		return
	}

	ctx := r.Context()
	cached := h.FpCache.Lookup(ctx, hash)
	if cached {
		observability.FingerprintCacheHits.WithLabelValues("hit").Inc()
	} else {
		observability.FingerprintCacheHits.WithLabelValues("miss").Inc()
		h.FpCache.Store(ctx, hash)
	}

	writeJSON(w, http.StatusOK, fingerprintResponse{FingerprintHash: hash, IsCached: cached})
}

// Telemetry ingests client events. Always 202: sink failures are logged,
// never surfaced as blocking.
func (h *Handler) Telemetry(w http.ResponseWriter, r *http.Request) {
	var ev telemetry.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if ev.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}
	h.Sink.Record(ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token exchanges operator credentials for a Bearer token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.Auth.IssueToken(username, password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

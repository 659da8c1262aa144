package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"cloak-engine/internal/engine"
	"cloak-engine/internal/storage"
)

type domainUpsertRequest struct {
	Domain      string              `json:"domain_name"`
	Status      engine.DomainStatus `json:"status,omitempty"`
	FallbackURL string              `json:"fallback_url,omitempty"`
}

// UpsertDomain creates or updates a domain document, preserving any
// existing campaigns (whole-document read-modify-write).
func (h *Handler) UpsertDomain(w http.ResponseWriter, r *http.Request) {
	var req domainUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Domain = strings.ToLower(strings.TrimSpace(chi.URLParam(r, "domain")))
	if req.Domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}
	if req.Status == "" {
		req.Status = engine.DomainActive
	}

	ctx := r.Context()
	cfg, err := h.Store.GetDomain(ctx, req.Domain)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "config store unavailable")
		return
	}
	cfg.Domain = req.Domain
	cfg.Status = req.Status
	cfg.FallbackURL = req.FallbackURL

	if err := h.Store.PutDomain(ctx, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store domain config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) GetDomain(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	cfg, err := h.Store.GetDomain(r.Context(), domain)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("domain %q not found", domain))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	err := h.Store.DeleteDomain(r.Context(), domain)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("domain %q not found", domain))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete domain config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("domain %q deleted", domain)})
}

type campaignCreateRequest struct {
	Domain       string                 `json:"domain_name"`
	Path         string                 `json:"path"`
	WhiteContent string                 `json:"white_content,omitempty"`
	WhiteURL     string                 `json:"white_url,omitempty"`
	BlackContent string                 `json:"black_content,omitempty"`
	BlackURLA    string                 `json:"black_url_a,omitempty"`
	BlackURLB    string                 `json:"black_url_b,omitempty"`
	Filters      *engine.FilterSettings `json:"filters,omitempty"`
}

// normalizePath strips surrounding slashes and rejects nested paths.
func normalizePath(path string) (string, error) {
	p := strings.Trim(strings.TrimSpace(path), "/")
	if p == "" {
		return "", errors.New("campaign path cannot be empty")
	}
	if strings.Contains(p, "/") {
		return "", errors.New("campaign path cannot contain '/' (nested paths unsupported)")
	}
	return p, nil
}

func validateCampaignTargets(c engine.CampaignConfig) error {
	if c.WhiteContent == "" && c.WhiteURL == "" {
		return errors.New("a white target (white_content or white_url) is required")
	}
	if c.BlackContent == "" && c.BlackURLA == "" {
		return errors.New("a black target (black_content or black_url_a) is required")
	}
	if c.BlackURLB != "" && c.BlackURLA == "" {
		return errors.New("black_url_b requires black_url_a")
	}
	return nil
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	path, err := normalizePath(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	cfg, err := h.Store.GetDomain(ctx, domain)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("domain %q not found or not configured", domain))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config store unavailable")
		return
	}
	if cfg.Status != engine.DomainActive {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("domain %q is not active", domain))
		return
	}
	if _, exists := cfg.Campaigns[path]; exists {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("campaign path %q already exists", path))
		return
	}

	now := time.Now().UTC()
	campaign := engine.CampaignConfig{
		WhiteContent: req.WhiteContent,
		WhiteURL:     req.WhiteURL,
		BlackContent: req.BlackContent,
		BlackURLA:    req.BlackURLA,
		BlackURLB:    req.BlackURLB,
		Filters:      engine.DefaultFilterSettings(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Filters != nil {
		campaign.Filters = *req.Filters
	}
	if err := validateCampaignTargets(campaign); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if cfg.Campaigns == nil {
		cfg.Campaigns = map[string]engine.CampaignConfig{}
	}
	cfg.Campaigns[path] = campaign
	if err := h.Store.PutDomain(ctx, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store campaign")
		return
	}
	log.Info().Str("domain", domain).Str("path", path).Msg("campaign created")
	writeJSON(w, http.StatusCreated, campaign)
}

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	cfg, err := h.Store.GetDomain(r.Context(), domain)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("domain %q not found", domain))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"domain_name": cfg.Domain,
		"campaigns":   cfg.Campaigns,
	})
}

type campaignUpdateRequest struct {
	WhiteContent *string                `json:"white_content,omitempty"`
	WhiteURL     *string                `json:"white_url,omitempty"`
	BlackContent *string                `json:"black_content,omitempty"`
	BlackURLA    *string                `json:"black_url_a,omitempty"`
	BlackURLB    *string                `json:"black_url_b,omitempty"`
	Filters      *engine.FilterSettings `json:"filters,omitempty"`
}

// UpdateCampaign applies only the fields present in the request, then puts
// the whole domain document back.
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(chi.URLParam(r, "domain"))
	path, err := normalizePath(chi.URLParam(r, "path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req campaignUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	cfg, err := h.Store.GetDomain(ctx, domain)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("campaign %q not found for domain %q", path, domain))
		return
	}
	campaign, ok := cfg.Campaigns[path]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("campaign %q not found for domain %q", path, domain))
		return
	}

	if req.WhiteContent != nil {
		campaign.WhiteContent = *req.WhiteContent
	}
	if req.WhiteURL != nil {
		campaign.WhiteURL = *req.WhiteURL
	}
	if req.BlackContent != nil {
		campaign.BlackContent = *req.BlackContent
	}
	if req.BlackURLA != nil {
		campaign.BlackURLA = *req.BlackURLA
	}
	if req.BlackURLB != nil {
		campaign.BlackURLB = *req.BlackURLB
	}
	if req.Filters != nil {
		campaign.Filters = *req.Filters
	}
	if err := validateCampaignTargets(campaign); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	campaign.UpdatedAt = time.Now().UTC()

	cfg.Campaigns[path] = campaign
	if err := h.Store.PutDomain(ctx, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store campaign")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(chi.URLParam(r, "domain"))
	path, err := normalizePath(chi.URLParam(r, "path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	cfg, err := h.Store.GetDomain(ctx, domain)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("campaign %q not found for domain %q", path, domain))
		return
	}
	if _, ok := cfg.Campaigns[path]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("campaign %q not found for domain %q", path, domain))
		return
	}

	delete(cfg.Campaigns, path)
	if err := h.Store.PutDomain(ctx, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store domain config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     fmt.Sprintf("campaign %q deleted from domain %q", path, domain),
		"domain_name": domain,
		"path":        path,
	})
}

// GetLinkFilters returns stored settings, or the documented defaults when
// none exist. Absent settings are never an error.
func (h *Handler) GetLinkFilters(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")
	fs, err := h.Store.GetFilters(r.Context(), linkID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, engine.DefaultFilterSettings())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

type updateLinkFiltersRequest struct {
	Filters engine.FilterSettings `json:"filters"`
}

func (h *Handler) UpdateLinkFilters(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")
	var req updateLinkFiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.Store.PutFilters(r.Context(), linkID, req.Filters); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store filter settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"link_id": linkID,
		"message": "filter settings updated",
	})
}

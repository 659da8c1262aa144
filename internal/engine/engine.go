package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cloak-engine/internal/geo"
)

// ConfigStore is the narrow read contract the orchestrator needs. Any read
// failure is treated as config-absent: store unavailability must never block
// a decision.
type ConfigStore interface {
	GetDomain(ctx context.Context, domain string) (DomainConfig, error)
}

// Sink receives one immutable DecisionResult per request, fire-and-forget.
type Sink interface {
	EmitDecision(res DecisionResult)
}

// DecideRequest is the raw input from the edge worker.
type DecideRequest struct {
	Host    string            `json:"host"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
}

// Options parameterize an Orchestrator.
type Options struct {
	FallbackURL    string        // global safe URL when no config resolves one
	RiskThreshold  float64       // default; campaigns may override
	ConfigCacheTTL time.Duration // read-through domain-config cache
	ShortCircuit   bool          // stop the pipeline at the first block
}

// Orchestrator composes config load, signal extraction, the filter
// pipeline, risk scoring and target selection into one stateless
// per-request decision.
type Orchestrator struct {
	store  ConfigStore
	scorer *RiskScorer
	geo    geo.Resolver
	sink   Sink
	opts   Options

	mu       sync.RWMutex
	cfgCache map[string]cachedConfig
}

type cachedConfig struct {
	cfg DomainConfig
	at  time.Time
}

func NewOrchestrator(store ConfigStore, scorer *RiskScorer, resolver geo.Resolver, sink Sink, opts Options) *Orchestrator {
	if opts.RiskThreshold <= 0 {
		opts.RiskThreshold = 0.5
	}
	if opts.ConfigCacheTTL <= 0 {
		opts.ConfigCacheTTL = 30 * time.Second
	}
	return &Orchestrator{
		store:    store,
		scorer:   scorer,
		geo:      resolver,
		sink:     sink,
		opts:     opts,
		cfgCache: map[string]cachedConfig{},
	}
}

// Decide runs the full state machine for one request. It never returns an
// error: every internal fault collapses into a safe fallback verdict.
func (o *Orchestrator) Decide(ctx context.Context, req DecideRequest) DecisionResult {
	host := strings.ToLower(strings.TrimSpace(req.Host))
	path := strings.Trim(strings.TrimSpace(req.Path), "/")

	// ConfigLoad
	domainCfg, ok := o.loadDomain(ctx, host)
	if !ok {
		return o.logged(DecisionResult{
			Host: host, Path: path,
			Verdict:   ServeWhiteFallback,
			TargetURL: o.opts.FallbackURL,
			Reason:    "no_config",
		})
	}
	if domainCfg.Status != DomainActive {
		return o.logged(DecisionResult{
			Host: host, Path: path,
			Verdict:   ServeWhiteFallback,
			TargetURL: o.fallbackURL(domainCfg),
			Reason:    "domain_inactive",
		})
	}
	campaign, ok := domainCfg.Campaigns[path]
	if !ok {
		return o.logged(DecisionResult{
			Host: host, Path: path,
			Verdict:   ServeWhiteFallback,
			TargetURL: o.fallbackURL(domainCfg),
			Reason:    "no_config",
		})
	}

	// SignalExtraction
	sig := ExtractSignals(req.Headers, o.geo)

	// PipelineEval
	pipe := EvaluatePipeline(sig, campaign.Filters, o.opts.ShortCircuit)
	if pipe.AllowBypass {
		return o.serveBlack(domainCfg, campaign, sig, DecisionResult{
			Host: host, Path: path,
			Reason: "ip_allow_listed",
			Trail:  pipe.Trail,
		})
	}
	if pipe.HardBlock {
		res := DecisionResult{
			Host: host, Path: path,
			Verdict: ServeWhite,
			Reason:  pipe.BlockReason,
			Trail:   pipe.Trail,
		}
		o.fillWhiteTarget(&res, domainCfg, campaign)
		res.FingerprintHash = sig.FingerprintHash
		return o.logged(res)
	}

	// RiskScoring
	var riskScore *float64
	if campaign.Filters.Scoring.Enabled && o.scorer != nil {
		assessment := o.scorer.Evaluate(ctx, sig, campaign.Filters)
		riskScore = &assessment.Score
		threshold := campaign.Filters.Scoring.Threshold
		if threshold <= 0 {
			threshold = o.opts.RiskThreshold
		}
		if assessment.Score >= threshold {
			res := DecisionResult{
				Host: host, Path: path,
				Verdict:   ServeWhite,
				Reason:    fmt.Sprintf("risk_score_%.2f_over_threshold_%.2f", assessment.Score, threshold),
				Trail:     pipe.Trail,
				RiskScore: riskScore,
			}
			o.fillWhiteTarget(&res, domainCfg, campaign)
			res.FingerprintHash = sig.FingerprintHash
			return o.logged(res)
		}
	}

	// TargetSelection
	return o.serveBlack(domainCfg, campaign, sig, DecisionResult{
		Host: host, Path: path,
		Reason:    "passed_all_filters",
		Trail:     pipe.Trail,
		RiskScore: riskScore,
	})
}

// Invalidate implements storage.Invalidator; key is the store document key.
func (o *Orchestrator) Invalidate(key string) {
	domain, found := strings.CutPrefix(key, "domain:")
	if !found {
		return
	}
	o.mu.Lock()
	delete(o.cfgCache, domain)
	o.mu.Unlock()
}

func (o *Orchestrator) loadDomain(ctx context.Context, host string) (DomainConfig, bool) {
	if host == "" {
		return DomainConfig{}, false
	}

	o.mu.RLock()
	entry, hit := o.cfgCache[host]
	o.mu.RUnlock()
	if hit && time.Since(entry.at) < o.opts.ConfigCacheTTL {
		return entry.cfg, true
	}

	cfg, err := o.store.GetDomain(ctx, host)
	if err != nil {
		// Store unavailability and missing config fail the same way: toward
		// the safe fallback.
		log.Warn().Err(err).Str("host", host).Msg("domain config unavailable")
		return DomainConfig{}, false
	}

	o.mu.Lock()
	o.cfgCache[host] = cachedConfig{cfg: cfg, at: time.Now()}
	o.mu.Unlock()
	return cfg, true
}

func (o *Orchestrator) serveBlack(domainCfg DomainConfig, c CampaignConfig, sig Signals, res DecisionResult) DecisionResult {
	res.Verdict = ServeBlack
	res.FingerprintHash = sig.FingerprintHash
	if c.BlackContent != "" && c.BlackURLA == "" {
		res.Content = c.BlackContent
		res.ContentType = "text/html"
	} else {
		url, variant := SelectBlackTarget(c, sig.FingerprintHash, o.fallbackURL(domainCfg))
		res.TargetURL = url
		res.Variant = variant
		if variant == "" {
			res.Verdict = ServeWhiteFallback
			res.Reason = "fingerprint_unavailable"
		}
	}
	return o.logged(res)
}

func (o *Orchestrator) fillWhiteTarget(res *DecisionResult, domainCfg DomainConfig, c CampaignConfig) {
	switch {
	case c.WhiteURL != "":
		res.TargetURL = c.WhiteURL
	case c.WhiteContent != "":
		res.Content = c.WhiteContent
		res.ContentType = "text/html"
	default:
		res.TargetURL = o.fallbackURL(domainCfg)
	}
}

func (o *Orchestrator) fallbackURL(domainCfg DomainConfig) string {
	if domainCfg.FallbackURL != "" {
		return domainCfg.FallbackURL
	}
	return o.opts.FallbackURL
}

// logged is the terminal state: stamp, emit, return. No retries.
func (o *Orchestrator) logged(res DecisionResult) DecisionResult {
	res.At = time.Now().UTC()
	if o.sink != nil {
		o.sink.EmitDecision(res)
	}
	log.Info().
		Str("host", res.Host).
		Str("path", res.Path).
		Str("verdict", string(res.Verdict)).
		Str("reason", res.Reason).
		Msg("decision")
	return res
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"cloak-engine/internal/verifier"
)

// Scorer is the pluggable model contract: score in [0,1], higher means
// more likely automated. Production may wire a real classifier; tests use
// a deterministic stub.
type Scorer interface {
	Score(ctx context.Context, sig Signals) (float64, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(ctx context.Context, sig Signals) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, sig Signals) (float64, error) { return f(ctx, sig) }

// Weights are the per-signal contributions to the risk score. A missing or
// anomalous signal adds its full weight; graded signals (verifier, model)
// add weight times their [0,1] value.
type Weights struct {
	MissingWebRTC    float64 `mapstructure:"missing_webrtc"`
	MissingSensors   float64 `mapstructure:"missing_sensors"`
	MissingLanguage  float64 `mapstructure:"missing_language"`
	UncommonLanguage float64 `mapstructure:"uncommon_language"`
	JSTimeAnomaly    float64 `mapstructure:"js_time_anomaly"`
	Verifier         float64 `mapstructure:"verifier"`
	Model            float64 `mapstructure:"model"`
}

func DefaultWeights() Weights {
	return Weights{
		MissingWebRTC:    0.15,
		MissingSensors:   0.10,
		MissingLanguage:  0.25,
		UncommonLanguage: 0.10,
		JSTimeAnomaly:    0.15,
		Verifier:         0.50,
		Model:            0.50,
	}
}

// neutralSignal is the fail-soft midpoint substituted when a graded signal
// cannot be obtained (verifier timeout, model failure): neither allow nor
// block leverage.
const neutralSignal = 0.5

// Accept-Language primary tags considered unremarkable for ad traffic.
var commonLanguages = map[string]struct{}{
	"en": {}, "es": {}, "pt": {}, "fr": {}, "de": {}, "it": {}, "nl": {},
	"pl": {}, "ru": {}, "tr": {}, "ar": {}, "hi": {}, "id": {}, "ja": {},
	"ko": {}, "zh": {}, "vi": {}, "th": {},
}

// RiskAssessment is the scorer's aggregate answer.
type RiskAssessment struct {
	Score float64
	Notes []string
}

// RiskScorer aggregates soft behavioral signals into a normalized score.
type RiskScorer struct {
	weights  Weights
	model    Scorer // optional
	verifier verifier.Verifier
}

func NewRiskScorer(w Weights, model Scorer, v verifier.Verifier) *RiskScorer {
	return &RiskScorer{weights: w, model: model, verifier: v}
}

// Evaluate computes the clamped [0,1] risk score for the request. It never
// returns an error: any subsystem failure degrades to the neutral midpoint
// for that signal.
func (r *RiskScorer) Evaluate(ctx context.Context, sig Signals, fs FilterSettings) RiskAssessment {
	var score float64
	var notes []string

	add := func(w float64, note string) {
		if w <= 0 {
			return
		}
		score += w
		notes = append(notes, note)
	}

	if sig.HasWebRTC == nil || !*sig.HasWebRTC {
		add(r.weights.MissingWebRTC, "missing_webrtc")
	}
	if sig.HasSensors == nil || !*sig.HasSensors {
		add(r.weights.MissingSensors, "missing_sensors")
	}

	if sig.AcceptLanguage == "" {
		add(r.weights.MissingLanguage, "missing_accept_language")
	} else if _, ok := commonLanguages[strings.ToLower(sig.Language)]; !ok {
		add(r.weights.UncommonLanguage, "uncommon_accept_language")
	}

	if fs.Sensitivity.Enabled && sig.JSExecTimeMS != nil {
		min, max := fs.Sensitivity.JSExecTimeMinMS, fs.Sensitivity.JSExecTimeMaxMS
		if max > 0 && (*sig.JSExecTimeMS < min || *sig.JSExecTimeMS > max) {
			add(r.weights.JSTimeAnomaly, "js_time_out_of_bounds")
		}
	}

	score += r.weights.Verifier * r.verifierSignal(ctx, sig, &notes)

	if r.model != nil {
		ms, err := r.model.Score(ctx, sig)
		if err != nil {
			log.Warn().Err(err).Msg("model score failed; using neutral midpoint")
			ms = neutralSignal
			notes = append(notes, "model_neutral")
		} else {
			notes = append(notes, fmt.Sprintf("model_score_%.2f", ms))
		}
		score += r.weights.Model * clamp01(ms)
	}

	return RiskAssessment{Score: clamp01(score), Notes: notes}
}

// verifierSignal grades the external challenge result: 0 pass, 1 fail,
// neutral midpoint when absent, timed out, or unconfigured.
func (r *RiskScorer) verifierSignal(ctx context.Context, sig Signals, notes *[]string) float64 {
	if r.verifier == nil || !r.verifier.Enabled() || sig.VerifierToken == "" {
		*notes = append(*notes, "verifier_absent")
		return neutralSignal
	}
	res, err := r.verifier.Verify(ctx, sig.VerifierToken, sig.IP)
	if err != nil {
		log.Warn().Err(err).Msg("verifier call failed; using neutral midpoint")
		*notes = append(*notes, "verifier_unreachable")
		return neutralSignal
	}
	if res.Success {
		*notes = append(*notes, "verifier_pass")
		return 0
	}
	*notes = append(*notes, "verifier_fail")
	return 1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

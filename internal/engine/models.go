package engine

import "time"

// Verdict is the final routing outcome for a request.
type Verdict string

const (
	ServeBlack         Verdict = "serve_black"
	ServeWhite         Verdict = "serve_white"
	ServeWhiteFallback Verdict = "serve_white_fallback"
)

// DomainStatus tracks the provisioning lifecycle of a domain.
type DomainStatus string

const (
	DomainPending  DomainStatus = "pending_verification"
	DomainActive   DomainStatus = "active"
	DomainDisabled DomainStatus = "disabled"
	DomainError    DomainStatus = "error"
)

// DomainConfig is the stored per-domain document. Campaigns are keyed by
// normalized path.
type DomainConfig struct {
	Domain      string                    `json:"domain_name"`
	Status      DomainStatus              `json:"status"`
	FallbackURL string                    `json:"fallback_url,omitempty"`
	Campaigns   map[string]CampaignConfig `json:"campaigns,omitempty"`
}

// CampaignConfig owns the white/black targets and the filter settings for
// one path under a domain. Content and URL forms are both supported; URL
// wins when set.
type CampaignConfig struct {
	WhiteContent string         `json:"white_content,omitempty"`
	WhiteURL     string         `json:"white_url,omitempty"`
	BlackContent string         `json:"black_content,omitempty"`
	BlackURLA    string         `json:"black_url_a,omitempty"`
	BlackURLB    string         `json:"black_url_b,omitempty"`
	Filters      FilterSettings `json:"filters"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty"`
}

// ListMode selects allow-list or block-list semantics.
type ListMode string

const (
	ModeAllow ListMode = "allow"
	ModeBlock ListMode = "block"
)

type UserAgentFilter struct {
	Enabled  bool     `json:"enabled"`
	Contains []string `json:"contains,omitempty"` // case-insensitive substrings
}

type IPRangesFilter struct {
	Enabled bool     `json:"enabled"`
	Allowed []string `json:"allowed,omitempty"` // IPs or CIDR ranges; match bypasses all other filters
	Blocked []string `json:"blocked,omitempty"`
}

type CountryFilter struct {
	Enabled   bool     `json:"enabled"`
	Mode      ListMode `json:"mode,omitempty"`
	Countries []string `json:"countries,omitempty"` // ISO 3166-1 alpha-2
}

type LanguageFilter struct {
	Enabled   bool     `json:"enabled"`
	Mode      ListMode `json:"mode,omitempty"`
	Languages []string `json:"languages,omitempty"` // ISO 639-1 primary tags
}

type DeviceTypeFilter struct {
	Enabled bool   `json:"enabled"`
	Target  string `json:"target,omitempty"` // "all" | "mobile" | "desktop"
}

// ExceptionsFilter lists requesters that bypass the baseline bot signatures
// and soft scoring.
type ExceptionsFilter struct {
	Enabled bool     `json:"enabled"`
	IPs     []string `json:"ips,omitempty"`
	ISPs    []string `json:"isps,omitempty"`
	Devices []string `json:"devices,omitempty"`
}

// SensitivityFilter bounds plausible client-side JS execution time for a
// human visitor, in milliseconds.
type SensitivityFilter struct {
	Enabled         bool    `json:"enabled"`
	JSExecTimeMinMS float64 `json:"js_exec_time_min_ms,omitempty"`
	JSExecTimeMaxMS float64 `json:"js_exec_time_max_ms,omitempty"`
}

type ScoringFilter struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold,omitempty"` // 0 means engine default
}

// FilterSettings is the composite of independently toggleable sub-filters.
// A disabled sub-filter never contributes to the verdict.
type FilterSettings struct {
	UserAgent   UserAgentFilter   `json:"user_agent"`
	IPRanges    IPRangesFilter    `json:"ip_ranges"`
	Country     CountryFilter     `json:"country"`
	Language    LanguageFilter    `json:"language"`
	DeviceType  DeviceTypeFilter  `json:"device_type"`
	Exceptions  ExceptionsFilter  `json:"exceptions"`
	Sensitivity SensitivityFilter `json:"sensitivity"`
	Scoring     ScoringFilter     `json:"scoring"`
}

// DefaultFilterSettings are served when a unit has no stored settings.
func DefaultFilterSettings() FilterSettings {
	return FilterSettings{
		UserAgent:   UserAgentFilter{Enabled: true},
		IPRanges:    IPRangesFilter{Enabled: true},
		Country:     CountryFilter{Enabled: true, Mode: ModeAllow},
		Language:    LanguageFilter{Enabled: true, Mode: ModeAllow},
		DeviceType:  DeviceTypeFilter{Enabled: true, Target: "all"},
		Sensitivity: SensitivityFilter{Enabled: true, JSExecTimeMinMS: 500, JSExecTimeMaxMS: 2000},
		Scoring:     ScoringFilter{Enabled: true},
	}
}

// Signals are the normalized per-request inputs to the pipeline and scorer.
// Missing signals stay zero-valued; they are absent, not errors.
type Signals struct {
	UserAgent      string
	IP             string
	Country        string // uppercased ISO code, empty if unresolvable
	Language       string // lowercased primary tag from Accept-Language
	AcceptLanguage string // raw header
	DeviceType     string // "mobile" | "desktop" | "" when unknown

	HasWebRTC    *bool
	HasSensors   *bool
	JSExecTimeMS *float64

	VerifierToken   string
	FingerprintHash string
}

// FilterOutcome is one entry of the audit trail.
type FilterOutcome struct {
	Filter  string `json:"filter"`
	Outcome string `json:"outcome"` // "pass" | "block" | "bypass"
	Reason  string `json:"reason,omitempty"`
}

const (
	OutcomePass   = "pass"
	OutcomeBlock  = "block"
	OutcomeBypass = "bypass"
)

// DecisionResult is emitted once per request, immutable, consumed by the
// audit sink.
type DecisionResult struct {
	Host            string          `json:"host"`
	Path            string          `json:"path"`
	Verdict         Verdict         `json:"verdict"`
	TargetURL       string          `json:"target_url,omitempty"`
	Content         string          `json:"content,omitempty"`
	ContentType     string          `json:"content_type,omitempty"`
	Reason          string          `json:"reason"`
	Trail           []FilterOutcome `json:"trail,omitempty"`
	RiskScore       *float64        `json:"risk_score,omitempty"` // nil when scoring disabled
	Variant         string          `json:"variant,omitempty"`    // "a" | "b"
	FingerprintHash string          `json:"fingerprint_hash,omitempty"`
	At              time.Time       `json:"at"`
}

package engine

import (
	"fmt"
	"net"
	"strings"
)

// Baseline crawler/bot signatures matched against every request's
// User-Agent in addition to the campaign's own block list. Substring,
// case-insensitive.
var baselineBotSignatures = []string{
	"bot", "crawler", "spider", "archiver", "yahoo! slurp", "pingdom",
	"facebookexternalhit", "googlebot", "bingbot", "yandexbot", "duckduckbot",
	"baiduspider", "sogou", "exabot", "facebot", "ia_archiver", "linkedinbot",
	"mediapartners-google", "mj12bot", "semrushbot", "ahrefsbot", "applebot",
	"adsbot-google", "curl", "wget", "python-requests", "scrapy", "cloudflare",
}

// PipelineResult is the outcome of one full filter-pipeline evaluation.
type PipelineResult struct {
	Trail       []FilterOutcome
	HardBlock   bool
	BlockReason string // first block reason in pipeline order
	AllowBypass bool   // IP allow-list matched; wins over every block
}

// EvaluatePipeline runs the sub-filters in their fixed order: user-agent,
// IP ranges, geolocation, language, device type. With shortCircuit false
// every enabled filter is evaluated so the audit trail is complete; with
// shortCircuit true evaluation stops at the first block. An IP allow-list
// match bypasses all filters regardless of order.
func EvaluatePipeline(sig Signals, fs FilterSettings, shortCircuit bool) PipelineResult {
	var res PipelineResult

	if fs.IPRanges.Enabled && ipMatchesAny(sig.IP, fs.IPRanges.Allowed) {
		res.AllowBypass = true
		res.Trail = append(res.Trail, FilterOutcome{
			Filter:  "ip_ranges",
			Outcome: OutcomeBypass,
			Reason:  "ip_allow_listed",
		})
		return res
	}

	record := func(o FilterOutcome) bool {
		res.Trail = append(res.Trail, o)
		if o.Outcome == OutcomeBlock {
			if !res.HardBlock {
				res.HardBlock = true
				res.BlockReason = o.Reason
			}
			return shortCircuit
		}
		return false
	}

	if fs.UserAgent.Enabled {
		if record(userAgentFilter(sig, fs.UserAgent, fs.Exceptions)) {
			return res
		}
	}
	if fs.IPRanges.Enabled {
		if record(ipBlockFilter(sig, fs.IPRanges)) {
			return res
		}
	}
	if fs.Country.Enabled {
		if record(countryFilter(sig, fs.Country)) {
			return res
		}
	}
	if fs.Language.Enabled {
		if record(languageFilter(sig, fs.Language)) {
			return res
		}
	}
	if fs.DeviceType.Enabled {
		if record(deviceTypeFilter(sig, fs.DeviceType)) {
			return res
		}
	}
	return res
}

func userAgentFilter(sig Signals, f UserAgentFilter, ex ExceptionsFilter) FilterOutcome {
	ua := strings.ToLower(sig.UserAgent)
	for _, pattern := range f.Contains {
		if pattern != "" && strings.Contains(ua, strings.ToLower(pattern)) {
			return FilterOutcome{Filter: "user_agent", Outcome: OutcomeBlock,
				Reason: "user_agent_matched_" + strings.ToLower(pattern)}
		}
	}
	if !isExcepted(sig, ex) {
		for _, pattern := range baselineBotSignatures {
			if strings.Contains(ua, pattern) {
				return FilterOutcome{Filter: "user_agent", Outcome: OutcomeBlock,
					Reason: "user_agent_bot_detected"}
			}
		}
	}
	return FilterOutcome{Filter: "user_agent", Outcome: OutcomePass}
}

func ipBlockFilter(sig Signals, f IPRangesFilter) FilterOutcome {
	if ipMatchesAny(sig.IP, f.Blocked) {
		return FilterOutcome{Filter: "ip_ranges", Outcome: OutcomeBlock, Reason: "ip_block_listed"}
	}
	return FilterOutcome{Filter: "ip_ranges", Outcome: OutcomePass}
}

// countryFilter compares uppercased ISO codes. An unresolvable country
// passes a block list (nothing matched) but fails an allow list (membership
// cannot be proven). Empty lists never contribute.
func countryFilter(sig Signals, f CountryFilter) FilterOutcome {
	if len(f.Countries) == 0 {
		return FilterOutcome{Filter: "country", Outcome: OutcomePass}
	}
	country := strings.ToUpper(sig.Country)
	listed := false
	for _, c := range f.Countries {
		if strings.ToUpper(c) == country && country != "" {
			listed = true
			break
		}
	}
	switch f.Mode {
	case ModeBlock:
		if listed {
			return FilterOutcome{Filter: "country", Outcome: OutcomeBlock,
				Reason: "country_blocked_" + strings.ToLower(country)}
		}
	default: // allow
		if country == "" {
			return FilterOutcome{Filter: "country", Outcome: OutcomeBlock,
				Reason: "country_unresolved"}
		}
		if !listed {
			return FilterOutcome{Filter: "country", Outcome: OutcomeBlock,
				Reason: "country_not_allowed_" + strings.ToLower(country)}
		}
	}
	return FilterOutcome{Filter: "country", Outcome: OutcomePass}
}

func languageFilter(sig Signals, f LanguageFilter) FilterOutcome {
	if len(f.Languages) == 0 {
		return FilterOutcome{Filter: "language", Outcome: OutcomePass}
	}
	lang := strings.ToLower(sig.Language)
	listed := false
	for _, l := range f.Languages {
		if strings.ToLower(l) == lang && lang != "" {
			listed = true
			break
		}
	}
	switch f.Mode {
	case ModeBlock:
		if listed {
			return FilterOutcome{Filter: "language", Outcome: OutcomeBlock,
				Reason: "language_blocked_" + lang}
		}
	default: // allow
		if lang == "" {
			return FilterOutcome{Filter: "language", Outcome: OutcomeBlock,
				Reason: "language_unresolved"}
		}
		if !listed {
			return FilterOutcome{Filter: "language", Outcome: OutcomeBlock,
				Reason: "language_not_allowed_" + lang}
		}
	}
	return FilterOutcome{Filter: "language", Outcome: OutcomePass}
}

func deviceTypeFilter(sig Signals, f DeviceTypeFilter) FilterOutcome {
	target := strings.ToLower(f.Target)
	if target == "" || target == "all" || sig.DeviceType == "" {
		return FilterOutcome{Filter: "device_type", Outcome: OutcomePass}
	}
	if sig.DeviceType != target {
		return FilterOutcome{Filter: "device_type", Outcome: OutcomeBlock,
			Reason: fmt.Sprintf("device_type_mismatch_%s", sig.DeviceType)}
	}
	return FilterOutcome{Filter: "device_type", Outcome: OutcomePass}
}

func isExcepted(sig Signals, ex ExceptionsFilter) bool {
	if !ex.Enabled {
		return false
	}
	if ipMatchesAny(sig.IP, ex.IPs) {
		return true
	}
	dev := strings.ToLower(sig.DeviceType)
	for _, d := range ex.Devices {
		if d != "" && strings.ToLower(d) == dev {
			return true
		}
	}
	ua := strings.ToLower(sig.UserAgent)
	for _, isp := range ex.ISPs {
		if isp != "" && strings.Contains(ua, strings.ToLower(isp)) {
			return true
		}
	}
	return false
}

// ipMatchesAny reports whether ip matches any entry; entries are exact IPs
// or CIDR ranges.
func ipMatchesAny(ip string, entries []string) bool {
	if ip == "" || len(entries) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, cidr, err := net.ParseCIDR(entry)
			if err == nil && cidr.Contains(parsed) {
				return true
			}
			continue
		}
		if other := net.ParseIP(entry); other != nil && other.Equal(parsed) {
			return true
		}
	}
	return false
}

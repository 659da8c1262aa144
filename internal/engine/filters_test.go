package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func enabledIP(allowed, blocked []string) IPRangesFilter {
	return IPRangesFilter{Enabled: true, Allowed: allowed, Blocked: blocked}
}

func TestEvaluatePipeline_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		sig         Signals
		fs          FilterSettings
		wantBlock   bool
		wantBypass  bool
		wantReason  string
	}{
		{
			name:       "clean request passes",
			sig:        Signals{UserAgent: "Mozilla/5.0 (Windows NT 10.0)", IP: "1.2.3.4", Country: "US", Language: "en"},
			fs:         FilterSettings{UserAgent: UserAgentFilter{Enabled: true}},
			wantBlock:  false,
		},
		{
			name:       "baseline bot signature",
			sig:        Signals{UserAgent: "Googlebot/2.1 (+http://www.google.com/bot.html)"},
			fs:         FilterSettings{UserAgent: UserAgentFilter{Enabled: true}},
			wantBlock:  true,
			wantReason: "user_agent_bot_detected",
		},
		{
			name:       "scraping library blocked",
			sig:        Signals{UserAgent: "python-requests/2.31"},
			fs:         FilterSettings{UserAgent: UserAgentFilter{Enabled: true}},
			wantBlock:  true,
			wantReason: "user_agent_bot_detected",
		},
		{
			name:       "configured UA substring case-insensitive",
			sig:        Signals{UserAgent: "My HEADLESS Browser"},
			fs:         FilterSettings{UserAgent: UserAgentFilter{Enabled: true, Contains: []string{"headless"}}},
			wantBlock:  true,
			wantReason: "user_agent_matched_headless",
		},
		{
			name:      "disabled UA filter never contributes",
			sig:       Signals{UserAgent: "Googlebot"},
			fs:        FilterSettings{UserAgent: UserAgentFilter{Enabled: false}},
			wantBlock: false,
		},
		{
			name:       "IP block list",
			sig:        Signals{IP: "10.0.0.7"},
			fs:         FilterSettings{IPRanges: enabledIP(nil, []string{"10.0.0.0/8"})},
			wantBlock:  true,
			wantReason: "ip_block_listed",
		},
		{
			name:       "IP allow wins over UA block",
			sig:        Signals{UserAgent: "curl/8.0", IP: "192.168.1.50"},
			fs: FilterSettings{
				UserAgent: UserAgentFilter{Enabled: true},
				IPRanges:  enabledIP([]string{"192.168.1.0/24"}, []string{"192.168.1.50"}),
			},
			wantBypass: true,
		},
		{
			name:       "country block uppercase list lowercase request",
			sig:        Signals{Country: "kp"},
			fs:         FilterSettings{Country: CountryFilter{Enabled: true, Mode: ModeBlock, Countries: []string{"KP"}}},
			wantBlock:  true,
			wantReason: "country_blocked_kp",
		},
		{
			name:       "country block lowercase list uppercase request",
			sig:        Signals{Country: "KP"},
			fs:         FilterSettings{Country: CountryFilter{Enabled: true, Mode: ModeBlock, Countries: []string{"kp"}}},
			wantBlock:  true,
			wantReason: "country_blocked_kp",
		},
		{
			name:      "unresolved country passes block mode",
			sig:       Signals{Country: ""},
			fs:        FilterSettings{Country: CountryFilter{Enabled: true, Mode: ModeBlock, Countries: []string{"KP"}}},
			wantBlock: false,
		},
		{
			name:       "unresolved country fails allow mode",
			sig:        Signals{Country: ""},
			fs:         FilterSettings{Country: CountryFilter{Enabled: true, Mode: ModeAllow, Countries: []string{"US"}}},
			wantBlock:  true,
			wantReason: "country_unresolved",
		},
		{
			name:      "empty country list never contributes",
			sig:       Signals{Country: "US"},
			fs:        FilterSettings{Country: CountryFilter{Enabled: true, Mode: ModeAllow}},
			wantBlock: false,
		},
		{
			name:       "language allow mismatch",
			sig:        Signals{Language: "ru"},
			fs:         FilterSettings{Language: LanguageFilter{Enabled: true, Mode: ModeAllow, Languages: []string{"en", "es"}}},
			wantBlock:  true,
			wantReason: "language_not_allowed_ru",
		},
		{
			name:       "device mismatch blocked",
			sig:        Signals{DeviceType: "desktop"},
			fs:         FilterSettings{DeviceType: DeviceTypeFilter{Enabled: true, Target: "mobile"}},
			wantBlock:  true,
			wantReason: "device_type_mismatch_desktop",
		},
		{
			name:      "unknown device passes restriction",
			sig:       Signals{DeviceType: ""},
			fs:        FilterSettings{DeviceType: DeviceTypeFilter{Enabled: true, Target: "mobile"}},
			wantBlock: false,
		},
		{
			name: "exception IP bypasses baseline bot check",
			sig:  Signals{UserAgent: "health-check crawler", IP: "5.5.5.5"},
			fs: FilterSettings{
				UserAgent:  UserAgentFilter{Enabled: true},
				Exceptions: ExceptionsFilter{Enabled: true, IPs: []string{"5.5.5.5"}},
			},
			wantBlock: false,
		},
		{
			name: "disabled exceptions never bypass",
			sig:  Signals{UserAgent: "health-check crawler", IP: "5.5.5.5"},
			fs: FilterSettings{
				UserAgent:  UserAgentFilter{Enabled: true},
				Exceptions: ExceptionsFilter{IPs: []string{"5.5.5.5"}},
			},
			wantBlock:  true,
			wantReason: "user_agent_bot_detected",
		},
		{
			name: "exception does not bypass configured UA list",
			sig:  Signals{UserAgent: "badagent", IP: "5.5.5.5"},
			fs: FilterSettings{
				UserAgent:  UserAgentFilter{Enabled: true, Contains: []string{"badagent"}},
				Exceptions: ExceptionsFilter{Enabled: true, IPs: []string{"5.5.5.5"}},
			},
			wantBlock:  true,
			wantReason: "user_agent_matched_badagent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluatePipeline(tt.sig, tt.fs, false)
			assert.Equal(t, tt.wantBlock, res.HardBlock)
			assert.Equal(t, tt.wantBypass, res.AllowBypass)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, res.BlockReason)
			}
		})
	}
}

func TestEvaluatePipeline_FullTrailWithoutShortCircuit(t *testing.T) {
	fs := DefaultFilterSettings()
	fs.Country = CountryFilter{Enabled: true, Mode: ModeBlock, Countries: []string{"KP"}}
	sig := Signals{UserAgent: "curl/8.0", IP: "1.2.3.4", Country: "KP", Language: "en", DeviceType: "desktop"}

	res := EvaluatePipeline(sig, fs, false)
	assert.True(t, res.HardBlock)
	// First block reason in pipeline order wins even though later filters
	// also blocked.
	assert.Equal(t, "user_agent_bot_detected", res.BlockReason)
	assert.Len(t, res.Trail, 5, "every enabled filter must appear in the trail")
}

func TestEvaluatePipeline_ShortCircuitStopsAtFirstBlock(t *testing.T) {
	fs := DefaultFilterSettings()
	sig := Signals{UserAgent: "curl/8.0", IP: "1.2.3.4", Country: "US"}

	res := EvaluatePipeline(sig, fs, true)
	assert.True(t, res.HardBlock)
	assert.Len(t, res.Trail, 1)
}

func TestIPMatchesAny(t *testing.T) {
	tests := []struct {
		ip      string
		entries []string
		want    bool
	}{
		{"10.1.2.3", []string{"10.0.0.0/8"}, true},
		{"11.1.2.3", []string{"10.0.0.0/8"}, false},
		{"1.2.3.4", []string{"1.2.3.4"}, true},
		{"1.2.3.4", []string{"1.2.3.5"}, false},
		{"2001:db8::1", []string{"2001:db8::/32"}, true},
		{"", []string{"10.0.0.0/8"}, false},
		{"not-an-ip", []string{"10.0.0.0/8"}, false},
		{"1.2.3.4", []string{" 1.2.3.4 ", ""}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ipMatchesAny(tt.ip, tt.entries), "ip=%s entries=%v", tt.ip, tt.entries)
	}
}

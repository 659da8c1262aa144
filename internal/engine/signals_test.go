package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloak-engine/internal/geo"
)

type staticResolver string

func (s staticResolver) Country(string) string { return string(s) }

func TestExtractSignals_NormalizesHeaders(t *testing.T) {
	headers := map[string]string{
		"User-Agent":         " Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) ",
		"CF-Connecting-IP":   "203.0.113.9",
		"cf-ipcountry":       "br",
		"Accept-Language":    "pt-BR,pt;q=0.9,en;q=0.8",
		"X-Fingerprint-Hash": "abc123",
		"X-Verifier-Token":   "tok",
		"X-Has-WebRTC":       "true",
		"X-Has-Sensors":      "0",
		"X-JS-Time-MS":       "812.5",
	}

	sig := ExtractSignals(headers, geo.Noop{})

	assert.Equal(t, "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", sig.UserAgent)
	assert.Equal(t, "203.0.113.9", sig.IP)
	assert.Equal(t, "BR", sig.Country)
	assert.Equal(t, "pt", sig.Language)
	assert.Equal(t, "pt-BR,pt;q=0.9,en;q=0.8", sig.AcceptLanguage)
	assert.Equal(t, "mobile", sig.DeviceType)
	assert.Equal(t, "abc123", sig.FingerprintHash)
	assert.Equal(t, "tok", sig.VerifierToken)
	require.NotNil(t, sig.HasWebRTC)
	assert.True(t, *sig.HasWebRTC)
	require.NotNil(t, sig.HasSensors)
	assert.False(t, *sig.HasSensors)
	require.NotNil(t, sig.JSExecTimeMS)
	assert.Equal(t, 812.5, *sig.JSExecTimeMS)
}

func TestExtractSignals_MissingSignalsStayAbsent(t *testing.T) {
	sig := ExtractSignals(map[string]string{}, geo.Noop{})

	assert.Empty(t, sig.UserAgent)
	assert.Empty(t, sig.IP)
	assert.Empty(t, sig.Country)
	assert.Empty(t, sig.DeviceType)
	assert.Nil(t, sig.HasWebRTC)
	assert.Nil(t, sig.HasSensors)
	assert.Nil(t, sig.JSExecTimeMS)
}

func TestExtractSignals_GeoResolverFallback(t *testing.T) {
	headers := map[string]string{"CF-Connecting-IP": "203.0.113.9"}

	sig := ExtractSignals(headers, staticResolver("DE"))
	assert.Equal(t, "DE", sig.Country)

	// The edge header wins when present.
	headers["CF-IPCountry"] = "US"
	sig = ExtractSignals(headers, staticResolver("DE"))
	assert.Equal(t, "US", sig.Country)
}

func TestClientIP_Precedence(t *testing.T) {
	tests := []struct {
		name string
		h    map[string]string
		want string
	}{
		{"edge header first", map[string]string{"cf-connecting-ip": "1.1.1.1", "x-forwarded-for": "2.2.2.2"}, "1.1.1.1"},
		{"first forwarded hop", map[string]string{"x-forwarded-for": "2.2.2.2, 3.3.3.3"}, "2.2.2.2"},
		{"real ip last", map[string]string{"x-real-ip": "4.4.4.4"}, "4.4.4.4"},
		{"nothing", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clientIP(tt.h))
		})
	}
}

func TestPrimaryLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pt-BR,pt;q=0.9", "pt"},
		{"en-US,en;q=0.9", "en"},
		{"EN", "en"},
		{"fr", "fr"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, primaryLanguage(tt.in), "in=%q", tt.in)
	}
}

func TestDetectDeviceType(t *testing.T) {
	assert.Equal(t, "mobile", detectDeviceType("Mozilla/5.0 (Linux; Android 14)"))
	assert.Equal(t, "desktop", detectDeviceType("Mozilla/5.0 (X11; Linux x86_64)"))
	assert.Equal(t, "", detectDeviceType(""))
}

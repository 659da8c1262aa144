package engine

import (
	"strconv"
	"strings"

	"cloak-engine/internal/geo"
)

// Signal headers the edge worker forwards alongside the standard ones.
const (
	headerCountry     = "cf-ipcountry"
	headerConnIP      = "cf-connecting-ip"
	headerFingerprint = "x-fingerprint-hash"
	headerVerifier    = "x-verifier-token"
	headerWebRTC      = "x-has-webrtc"
	headerSensors     = "x-has-sensors"
	headerJSTime      = "x-js-time-ms"
)

var mobileUAMarkers = []string{"mobile", "android", "iphone", "ipad", "ipod", "windows phone"}

// ExtractSignals normalizes raw request headers into Signals. Header names
// are matched case-insensitively; missing values are left zero, never
// treated as errors. Country comes from the trusted edge header first, the
// geo resolver second.
func ExtractSignals(headers map[string]string, resolver geo.Resolver) Signals {
	h := map[string]string{}
	for k, v := range headers {
		h[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	var sig Signals
	sig.UserAgent = h["user-agent"]
	sig.IP = clientIP(h)

	sig.Country = strings.ToUpper(h[headerCountry])
	if sig.Country == "" && resolver != nil && sig.IP != "" {
		sig.Country = resolver.Country(sig.IP)
	}

	sig.AcceptLanguage = h["accept-language"]
	sig.Language = primaryLanguage(sig.AcceptLanguage)
	sig.DeviceType = detectDeviceType(sig.UserAgent)

	sig.FingerprintHash = h[headerFingerprint]
	sig.VerifierToken = h[headerVerifier]

	if v, ok := h[headerWebRTC]; ok && v != "" {
		b := v == "true" || v == "1"
		sig.HasWebRTC = &b
	}
	if v, ok := h[headerSensors]; ok && v != "" {
		b := v == "true" || v == "1"
		sig.HasSensors = &b
	}
	if v, ok := h[headerJSTime]; ok && v != "" {
		if ms, err := strconv.ParseFloat(v, 64); err == nil {
			sig.JSExecTimeMS = &ms
		}
	}
	return sig
}

// clientIP prefers the edge-provided connecting IP, then the first hop of
// X-Forwarded-For, then X-Real-IP.
func clientIP(h map[string]string) string {
	if ip := h[headerConnIP]; ip != "" {
		return ip
	}
	if xff := h["x-forwarded-for"]; xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	return h["x-real-ip"]
}

// primaryLanguage pulls the first primary tag out of an Accept-Language
// header: "pt-BR,pt;q=0.9" -> "pt".
func primaryLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return ""
	}
	first := strings.SplitN(acceptLanguage, ",", 2)[0]
	first = strings.SplitN(first, ";", 2)[0]
	first = strings.SplitN(first, "-", 2)[0]
	return strings.ToLower(strings.TrimSpace(first))
}

func detectDeviceType(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := strings.ToLower(userAgent)
	for _, marker := range mobileUAMarkers {
		if strings.Contains(ua, marker) {
			return "mobile"
		}
	}
	return "desktop"
}

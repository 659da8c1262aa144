package engine

import "strconv"

// variantPrefixWidth is the fixed-width hex prefix of the fingerprint hash
// used for bucketing.
const variantPrefixWidth = 8

// variantMidpoint splits the 32-bit prefix space evenly.
const variantMidpoint = uint64(1) << 31

// SelectBlackTarget picks the concrete black URL for a request. Two-variant
// campaigns bucket deterministically on the fingerprint hash prefix so a
// visitor identity always lands on the same variant; one-variant campaigns
// always serve A. With two variants and no fingerprint the domain fallback
// URL is served instead of failing the request.
func SelectBlackTarget(c CampaignConfig, fpHash, domainFallback string) (url, variant string) {
	if c.BlackURLB == "" {
		return c.BlackURLA, "a"
	}
	if len(fpHash) < variantPrefixWidth {
		return domainFallback, ""
	}
	prefix, err := strconv.ParseUint(fpHash[:variantPrefixWidth], 16, 64)
	if err != nil {
		return domainFallback, ""
	}
	if prefix >= variantMidpoint {
		return c.BlackURLB, "b"
	}
	return c.BlackURLA, "a"
}

// Package fingerprint derives a stable identity hash from a bag of
// client-reported signals and memoizes it for repeat-visitor detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptySignals rejects an empty signal bag; it is an input-validation
// failure, not something to hash.
var ErrEmptySignals = errors.New("fingerprint: empty signal set")

// Canonical hashes an unordered signal map into a 256-bit hex identity.
// Keys are sorted lexicographically before serialization, so identical
// signal sets hash identically regardless of submission order.
func Canonical(signals map[string]any) (string, error) {
	if len(signals) == 0 {
		return "", ErrEmptySignals
	}

	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(canonicalValue(signals[k]))
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// JSON decodes all numbers to float64; keep integers compact.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

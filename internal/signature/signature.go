// Package signature signs and verifies payment provider notifications.
//
// The digest is SHA-512 over the payload values concatenated in byte-wise
// sorted key order, followed by the shared secret, rendered as uppercase hex.
// Keys never enter the digest and nil values contribute nothing.
package signature

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// HashField is the payload key carrying the provider's signature.
const HashField = "hash"

var ErrUnsupportedValue = errors.New("signature: unsupported payload value")

// Sign computes the signature of payload, ignoring any hash field.
func Sign(payload map[string]any, secret string) (string, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == HashField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := payload[k]
		if v == nil {
			continue
		}
		s, err := FormatValue(v)
		if err != nil {
			return "", fmt.Errorf("%w: key %q", err, k)
		}
		b.WriteString(s)
	}
	b.WriteString(secret)

	sum := sha512.Sum512([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// Verify reports whether payload carries a hash equal to Sign(payload, secret).
func Verify(payload map[string]any, secret string) bool {
	provided, ok := payload[HashField].(string)
	if !ok || provided == "" {
		return false
	}
	expected, err := Sign(payload, secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// FormatValue renders a scalar the way it enters the digest.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return "", fmt.Errorf("%w: number %q", ErrUnsupportedValue, x.String())
		}
		return formatFloat(f), nil
	case float64:
		return formatFloat(x), nil
	case float32:
		return formatFloat(float64(x)), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// formatFloat yields the shortest round-trip decimal, switching to exponent
// form outside [1e-6, 1e21) like JavaScript's Number#toString.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// strconv pads the exponent to two digits; the provider does not.
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant, exp := s[:i], s[i+1:]
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		s = mant + "e" + sign + digits
	}
	return s
}

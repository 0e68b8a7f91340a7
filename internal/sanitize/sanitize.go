// Package sanitize normalizes raw remote field values into storage-safe
// values. All functions are pure: a value that cannot be normalized yields
// "no value" rather than an error, so a single dirty field can never abort
// a reconciliation run.
package sanitize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxDigits is the total digit count of the mirror decimal columns
// (NUMERIC(15,2)).
const DefaultMaxDigits = 15

// ParseDate parses a remote date string in DD/MM/YYYY or
// DD/MM/YYYY HH:MM:SS form. Missing time parts default to midnight.
//
// Returns ok=false for empty or malformed input. Callers must treat a
// missing date as "unknown", never as a fatal condition.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	parts := strings.Fields(s)
	if len(parts) > 2 {
		return time.Time{}, false
	}

	dateParts := strings.Split(parts[0], "/")
	if len(dateParts) != 3 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(dateParts[0])
	month, err2 := strconv.Atoi(dateParts[1])
	year, err3 := strconv.Atoi(dateParts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return time.Time{}, false
	}

	hour, minute, second := 0, 0, 0
	if len(parts) == 2 {
		timeParts := strings.Split(parts[1], ":")
		if len(timeParts) != 3 {
			return time.Time{}, false
		}
		var err4, err5, err6 error
		hour, err4 = strconv.Atoi(timeParts[0])
		minute, err5 = strconv.Atoi(timeParts[1])
		second, err6 = strconv.Atoi(timeParts[2])
		if err4 != nil || err5 != nil || err6 != nil {
			return time.Time{}, false
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
			return time.Time{}, false
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes out-of-range components (31/02 becomes 03/03);
	// a date that moved is a malformed date, not a different one.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

// ClampResult reports what ClampDecimal did to a value.
type ClampResult struct {
	Value   float64
	Clamped bool
	// Limit is the bound that applied, recorded for warning messages.
	Limit float64
}

// ClampDecimal bounds a scalar destined for a fixed-precision decimal column
// with maxDigits total digits and 2 fractional digits. The storable limit is
// 10^(maxDigits-2) - 0.01; values beyond it are clamped to the limit with
// sign preserved so that an oversized payload value degrades instead of
// raising a storage overflow mid-batch.
//
// Accepts float64, int variants, and numeric strings. Non-numeric input
// yields ok=false.
func ClampDecimal(v any, maxDigits int) (ClampResult, bool) {
	if maxDigits <= 2 {
		maxDigits = DefaultMaxDigits
	}
	f, ok := toFloat(v)
	if !ok {
		return ClampResult{}, false
	}

	limit := math.Pow(10, float64(maxDigits-2)) - 0.01
	if math.Abs(f) > limit {
		return ClampResult{Value: math.Copysign(limit, f), Clamped: true, Limit: limit}, true
	}
	return ClampResult{Value: f, Limit: limit}, true
}

// NormalizeText returns the NFC normalization of a free-text value with
// surrounding whitespace trimmed. Mirrored text columns always store NFC so
// that key comparisons against later snapshots are byte-stable.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

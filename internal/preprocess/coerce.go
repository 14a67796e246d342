package preprocess

import (
	"math"
	"strconv"
	"strings"
)

// parseBool accepts the usual boolean spellings, including 0/1 exports
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1", "1.0", "yes", "y", "on":
		return true, true
	case "false", "f", "0", "0.0", "no", "n", "off":
		return false, true
	}
	return false, false
}

// parseCount accepts non-negative integers, also when exported as "12.0"
func parseCount(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// parseNumeric reads a number, falling back to booleans as 0/1 for flag columns
func parseNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f, true
	}
	if b, ok := parseBool(s); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isMissing(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "na", "n/a", "nan", "null", "none":
		return true
	}
	return false
}

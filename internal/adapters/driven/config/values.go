// Package config holds the value conversions shared by the ConfigStore
// adapters. TOML decodes integers as int64 and arrays as []any, while values
// set from the command line arrive as strings, so every getter accepts all
// three shapes.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// String converts v to a string. Scalars are formatted; other types give "".
func String(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool, int, int64, float64:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

// Int converts v to an int, parsing strings.
func Int(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Float converts v to a float64, parsing strings.
func Float(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Bool converts v to a bool, parsing strings such as "true" or "1".
func Bool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return err == nil && b
	default:
		return false
	}
}

// Duration converts v to a time.Duration. Strings use time.ParseDuration
// syntax; bare numbers are seconds.
func Duration(v any) time.Duration {
	switch val := v.(type) {
	case time.Duration:
		return val
	case int, int64, float64:
		return time.Duration(Float(val) * float64(time.Second))
	case string:
		s := strings.TrimSpace(val)
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
		return 0
	default:
		return 0
	}
}

// StringSlice converts v to a []string. A string is split on commas so
// "product,doc_chunk" set from the command line reads back as two items.
func StringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		return result
	default:
		return nil
	}
}

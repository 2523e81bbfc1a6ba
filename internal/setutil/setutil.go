// Package setutil canonicalizes multi-value field input into the repository's
// native CSV representation.
package setutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonicalize validates a multi-value list against the allowed values and
// returns the CSV form, deduplicated and ordered by the allowed declaration
// order. An empty allowed list accepts any values in input order.
func Canonicalize(values []string, allowed []string) (string, error) {
	if len(allowed) == 0 {
		seen := make(map[string]struct{}, len(values))
		ordered := make([]string, 0, len(values))
		for _, v := range values {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			ordered = append(ordered, v)
		}
		return strings.Join(ordered, ","), nil
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		allowedSet[v] = struct{}{}
	}

	selected := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := allowedSet[v]; !ok {
			return "", fmt.Errorf("invalid set value: %s", v)
		}
		selected[v] = struct{}{}
	}

	ordered := make([]string, 0, len(selected))
	for _, option := range allowed {
		if _, ok := selected[option]; ok {
			ordered = append(ordered, option)
		}
	}
	return strings.Join(ordered, ","), nil
}

// CanonicalizeAny canonicalizes a multi-value list arriving as []string,
// []any of strings, or []any of JSON numbers.
func CanonicalizeAny(input any, allowed []string) (string, error) {
	values, err := normalizeStringSlice(input)
	if err != nil {
		return "", err
	}
	return Canonicalize(values, allowed)
}

func normalizeStringSlice(input any) ([]string, error) {
	switch v := input.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch val := item.(type) {
			case string:
				out = append(out, val)
			case float64:
				// JSON numbers decode as float64; record references are ints.
				out = append(out, strconv.FormatInt(int64(val), 10))
			case int:
				out = append(out, strconv.Itoa(val))
			case int64:
				out = append(out, strconv.FormatInt(val, 10))
			default:
				return nil, fmt.Errorf("set values must be strings or integers")
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("set values must be an array")
	}
}

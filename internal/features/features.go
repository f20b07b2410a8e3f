package features

import (
	"fmt"
	"strings"
)

// separators used by free-text feature fields, e.g. "2 ch • Meublé • Parking"
const separators = "•,|"

// Extract turns a raw features value into a token list.
// Arrays are trusted and returned without splitting; any other value is
// stringified and split on •, comma and pipe.
func Extract(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return split(v)
	case bool:
		if !v {
			return []string{}
		}
		return split("true")
	case float64:
		if v == 0 {
			return []string{}
		}
	case int:
		if v == 0 {
			return []string{}
		}
	}
	return split(fmt.Sprint(raw))
}

func split(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Text joins the tokens lowercased, ready for substring matching
func Text(tokens []string) string {
	return strings.ToLower(strings.Join(tokens, " "))
}

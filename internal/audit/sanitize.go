package audit

import (
	"fmt"
	"strings"
)

const (
	maskedValue  = "***"
	maxTextRunes = 300
)

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"access_token":  {},
	"authorization": {},
	"secret":        {},
	"jwt":           {},
	"api_key":       {},
}

// Sanitize returns a copy of details with sensitive keys masked and long
// strings truncated. Nested maps and slices are walked recursively.
func Sanitize(details map[string]any) map[string]any {
	out := make(map[string]any, len(details))
	for key, value := range details {
		if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
			out[key] = maskedValue
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		return Sanitize(v)
	case map[string]string:
		converted := make(map[string]any, len(v))
		for key, item := range v {
			converted[key] = item
		}
		return Sanitize(converted)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = truncate(item)
		}
		return out
	case string:
		return truncate(v)
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return v
	case fmt.Stringer:
		return truncate(v.String())
	default:
		return truncate(fmt.Sprint(v))
	}
}

func truncate(value string) string {
	runes := []rune(value)
	if len(runes) <= maxTextRunes {
		return value
	}
	return string(runes[:maxTextRunes])
}

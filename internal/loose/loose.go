// Package loose decodes JSON produced by text-generation backends, which may
// be wrapped in markdown fences and may carry numbers as strings.
package loose

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kalambet/procura/internal/money"
)

var fenced = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ExtractJSON strips markdown code fences and any prose around the outermost
// JSON object.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fenced.FindStringSubmatch(raw); len(m) == 2 {
		raw = m[1]
	}
	raw = strings.Trim(raw, "`")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// Object decodes raw into a JSON object, retrying after ExtractJSON.
func Object(raw string) (map[string]any, error) {
	var out map[string]any
	err1 := json.Unmarshal([]byte(raw), &out)
	if err1 == nil && out != nil {
		return out, nil
	}
	out = nil
	err2 := json.Unmarshal([]byte(ExtractJSON(raw)), &out)
	if err2 == nil && out != nil {
		return out, nil
	}
	if err1 == nil {
		err1 = errors.New("not an object")
	}
	if err2 == nil {
		err2 = errors.New("not an object")
	}
	return nil, fmt.Errorf("parsing JSON object: %w", errors.Join(
		fmt.Errorf("direct parse: %w", err1),
		fmt.Errorf("markdown extraction: %w", err2),
	))
}

// Float coerces numbers and numeric strings. Currency symbols and thousands
// separators are accepted in strings.
func Float(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	case float32:
		return Float(float64(val))
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		return money.ParseAmount(val)
	default:
		return 0, false
	}
}

var firstInt = regexp.MustCompile(`-?\d+`)

// Int coerces integral numbers, and strings by their first integer
// ("30 days" is 30).
func Int(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return 0, false
		}
		return int(math.Round(val)), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
		f, err := val.Float64()
		return int(math.Round(f)), err == nil
	case string:
		m := firstInt.FindString(val)
		if m == "" {
			return 0, false
		}
		i, err := strconv.Atoi(m)
		return i, err == nil
	default:
		return 0, false
	}
}

// String coerces strings and scalars; it returns false for empty strings,
// null, objects and arrays.
func String(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// Bool coerces booleans, "true"/"yes" strings and non-zero numbers.
func Bool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

// Strings coerces a list of scalars, or a single string, into a string
// slice. Empty entries are skipped. It returns false when v is neither.
func Strings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return compact(val), true
	case []any:
		out := []string{}
		for _, e := range val {
			if s, ok := String(e); ok {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return []string{}, true
		}
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return Strings(arr)
			}
		}
		return []string{s}, true
	default:
		return nil, false
	}
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package fields

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// stripFences removes markdown code fences that chat models wrap around JSON
// despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// drop the language tag line, e.g. "json"
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseItemArray accepts either a bare JSON array or an object wrapping one
// (models sometimes answer {"items": [...]} regardless of instructions).
func parseItemArray(s string) ([]map[string]interface{}, bool) {
	var raw interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	arr, ok := raw.([]interface{})
	if !ok {
		obj, isObj := raw.(map[string]interface{})
		if !isObj {
			return nil, false
		}
		for _, v := range obj {
			if a, isArr := v.([]interface{}); isArr {
				arr = a
				ok = true
				break
			}
		}
		if !ok {
			return nil, false
		}
	}

	items := make([]map[string]interface{}, 0, len(arr))
	for _, el := range arr {
		m, isMap := el.(map[string]interface{})
		if !isMap {
			return nil, false
		}
		items = append(items, m)
	}
	return items, true
}

// thousandsDotRE matches numbers written with dots as thousands separators,
// the common style on Indonesian receipts ("1.150", "1.234.567").
var thousandsDotRE = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// coerceInt converts numbers and numeric strings into ints. Comma and
// Indonesian dot thousands separators are tolerated; ranges like "3-4" and
// other junk become nil rather than a guessed value.
func coerceInt(v interface{}) *int {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		n := int(val)
		return &n
	case int:
		return &val
	case string:
		cleaned := strings.TrimSpace(val)
		if cleaned == "" {
			return nil
		}
		negative := strings.HasPrefix(cleaned, "-")
		cleaned = strings.TrimPrefix(cleaned, "-")
		if strings.Contains(cleaned, "-") {
			// An interior dash is a range or a date fragment, not a number.
			return nil
		}
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if thousandsDotRE.MatchString(cleaned) {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		n := int(f)
		if negative {
			n = -n
		}
		return &n
	default:
		return nil
	}
}

// stringOrEmpty reads a string field, treating null and wrong types as empty.
func stringOrEmpty(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

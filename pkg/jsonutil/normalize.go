package jsonutil

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// MaxListItems caps the number of elements kept from a list field.
	MaxListItems = 20
	// MaxItemLength caps each list element, in runes.
	MaxItemLength = 500
)

// quoteChars are stripped from both ends of scalar strings.
const quoteChars = "\"'`"

// NormalizeList coerces a decoded JSON value into a list of strings.
//
//	nil            -> []
//	"x"            -> ["x"]   (surrounding quotes trimmed, "" -> [])
//	[...]          -> string elements only, empties dropped, capped
//	{k: v, ...}    -> string values ordered by key, capped
//
// Any other shape yields an empty list. The result is never nil.
func NormalizeList(v any) []string {
	out := []string{}

	switch val := v.(type) {
	case nil:
		return out
	case string:
		if s := cleanScalar(val); s != "" {
			out = append(out, capRunes(s, MaxItemLength))
		}
	case []string:
		for _, item := range val {
			out = appendItem(out, item)
		}
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				continue
			}
			out = appendItem(out, s)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s, ok := val[k].(string)
			if !ok {
				continue
			}
			out = appendItem(out, s)
		}
	}

	return out
}

// NormalizeRawList decodes raw JSON and applies NormalizeList.
// Undecodable input yields an empty list.
func NormalizeRawList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return []string{}
	}
	return NormalizeList(v)
}

// NormalizeText coerces a decoded JSON value into a single string.
// Lists are joined with newlines; numbers and booleans are formatted.
func NormalizeText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return cleanScalar(val)
	case []any, []string, map[string]any:
		return strings.Join(NormalizeList(val), "\n")
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return FlexibleStringValue(raw)
	}
}

// StringList is a []string that accepts a scalar, list, object or null when
// decoded from JSON.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	*l = NormalizeRawList(data)
	return nil
}

// Text is a string that accepts any JSON shape when decoded.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*t = ""
		return nil
	}
	*t = Text(NormalizeText(v))
	return nil
}

func appendItem(out []string, s string) []string {
	if len(out) >= MaxListItems {
		return out
	}
	s = cleanScalar(s)
	if s == "" {
		return out
	}
	return append(out, capRunes(s, MaxItemLength))
}

func cleanScalar(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, quoteChars)
	return strings.TrimSpace(s)
}

func capRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

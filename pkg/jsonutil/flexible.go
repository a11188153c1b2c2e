// Package jsonutil coerces loosely shaped JSON from model output into the
// canonical Go shapes used by the domain models.
package jsonutil

import (
	"encoding/json"
	"strconv"
)

// FlexibleStringValue renders a raw JSON scalar as a string. Models frequently
// emit numbers or booleans where a string was asked for. Null and empty input
// yield "". Non-scalar input is returned as its raw JSON text.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}

	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return string(raw)
	}
}

package datafetcher

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aegis-protocol/sentinel/internal/types"
)

// Upstream APIs are inconsistent about numeric encoding: the same field may
// arrive as a JSON number or as a quoted string. These helpers accept both and
// surface anything else as a Data error naming the field.

func JSONToUint64(raw json.RawMessage, field string) (uint64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, types.Errorf(types.ErrData, field, "not a uint64: %s", raw)
	}
	return n, nil
}

func JSONToFloat64(raw json.RawMessage, field string) (float64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, types.Errorf(types.ErrData, field, "not a number: %s", raw)
	}
	return n, nil
}

func JSONToInt(raw json.RawMessage, field string) (int, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, types.Errorf(types.ErrData, field, "not an integer: %s", raw)
	}
	return n, nil
}

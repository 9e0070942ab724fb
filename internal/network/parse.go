package network

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseChainID normalizes the chain id representations wallet providers
// emit: hex strings ("0x1"), decimal strings ("137"), JSON numbers and
// plain integers. Zero and negative ids are rejected.
func ParseChainID(raw any) (ChainID, error) {
	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("network: nil chain id")
	case ChainID:
		return validateChainID(int64(v))
	case int:
		return validateChainID(int64(v))
	case int64:
		return validateChainID(v)
	case uint64:
		return validateChainID(int64(v))
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("network: non-integer chain id %v", v)
		}
		return validateChainID(int64(v))
	case json.Number:
		return parseChainString(v.String())
	case string:
		return parseChainString(v)
	case json.RawMessage:
		return parseChainJSON(v)
	case []byte:
		return parseChainJSON(v)
	default:
		return 0, fmt.Errorf("network: unsupported chain id type %T", raw)
	}
}

func parseChainString(s string) (ChainID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("network: empty chain id")
	}

	var (
		id  int64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err = strconv.ParseInt(s[2:], 16, 64)
	} else {
		id, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("network: invalid chain id %q: %w", s, err)
	}
	return validateChainID(id)
}

func parseChainJSON(b []byte) (ChainID, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, fmt.Errorf("network: invalid chain id payload: %w", err)
	}
	return ParseChainID(v)
}

func validateChainID(id int64) (ChainID, error) {
	if id <= 0 {
		return 0, fmt.Errorf("network: invalid chain id %d", id)
	}
	return ChainID(id), nil
}

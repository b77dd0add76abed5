package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ignoredKeys never influence the cache key.
var ignoredKeys = map[string]struct{}{
	"correlation_id": {},
	"request_id":     {},
}

// Key builds "<scope>:<sha256 of canonical args>". Scope should include every
// identity the result depends on, such as the family and the tool name.
func Key(scope string, args map[string]any) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return "", fmt.Errorf("cache key scope is empty")
	}
	filtered := make(map[string]any, len(args))
	for k, v := range args {
		if _, skip := ignoredKeys[k]; skip {
			continue
		}
		filtered[k] = v
	}
	data, err := canonicalJSON(filtered)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return scope + ":" + hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return []byte(strconv.Quote(v)), nil
	case json.Number:
		return []byte(v.String()), nil
	case bool, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return json.Marshal(v)
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := canonicalJSON(item)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(key))
			buf.WriteByte(':')
			data, err := canonicalJSON(v[key])
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v)
	}
}

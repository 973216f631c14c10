package ingress

import (
	"bytes"
	"encoding/json"
	"sort"
)

// canonicalJSON re-marshals payload with sorted keys and no insignificant
// whitespace, matching the fingerprint algorithm's canonical form.
func canonicalJSON(payload any) ([]byte, error) {
	normalized, err := normalize(payload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalize round-trips through map[string]any/[]any so struct field order
// and json.RawMessage formatting cannot leak into the canonical form.
func normalize(payload any) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	return sortKeys(v), nil
}

func sortKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(orderedMap, 0, len(t))
		for _, k := range keys {
			out = append(out, kv{k, sortKeys(t[k])})
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = sortKeys(item)
		}
		return t
	default:
		return t
	}
}

type kv struct {
	Key   string
	Value any
}

// orderedMap marshals as a JSON object preserving insertion order, which we
// control to be key-sorted.
type orderedMap []kv

func (m orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(pair.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/fatflowers/paysync/pkg/types"
)

// Record is one transaction object from a provider response.
type Record map[string]any

// String returns the first non-empty key as a string. Numbers keep their literal form.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case bool:
			s = fmt.Sprint(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Records returns the nested array under key as records. Non-object entries are skipped.
func (r Record) Records(key string) []Record {
	items, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// DecodeRecords interprets a provider response body as a list of records.
// Accepted shapes are a JSON object, a JSON array of objects, and a
// form-urlencoded body. Anything else, HTML error pages included, is malformed.
func DecodeRecords(p types.PaymentProvider, body []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, malformed(p, body, "empty body")
	}

	switch trimmed[0] {
	case '{', '[':
		return decodeJSON(p, trimmed)
	case '<':
		return nil, malformed(p, body, "markup body")
	}
	return decodeForm(p, trimmed)
}

func decodeJSON(p types.PaymentProvider, body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed(p, body, "invalid json: %v", err)
	}
	if dec.More() {
		return nil, malformed(p, body, "trailing data after json value")
	}

	switch t := v.(type) {
	case map[string]any:
		return []Record{t}, nil
	case []any:
		out := make([]Record, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, malformed(p, body, "array element %d is not an object", i)
			}
			out = append(out, Record(m))
		}
		return out, nil
	}
	return nil, malformed(p, body, "unexpected json value %T", v)
}

func decodeForm(p types.PaymentProvider, body []byte) ([]Record, error) {
	s := string(body)
	if !strings.Contains(s, "=") || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return nil, malformed(p, body, "not a form body")
	}
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, malformed(p, body, "invalid form body: %v", err)
	}
	rec := make(Record, len(values))
	for k, vs := range values {
		if k == "" {
			return nil, malformed(p, body, "empty form key")
		}
		rec[k] = vs[0]
	}
	return []Record{rec}, nil
}

// Object returns the nested object under key, or nil.
func (r Record) Object(key string) Record {
	m, ok := r[key].(map[string]any)
	if !ok {
		return nil
	}
	return Record(m)
}

// Has reports whether any of keys is present with a non-null value.
func (r Record) Has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return true
		}
	}
	return false
}

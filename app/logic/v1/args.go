package v1

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Args is the decoded argument object of one tool call.
type Args map[string]any

func ParseArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, err
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

func (a Args) Has(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func (a Args) StringOr(key, def string) string {
	if v := a.String(key); v != "" {
		return v
	}
	return def
}

func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(v, "s"))); err == nil {
			return n
		}
	}
	return def
}

func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func (a Args) Strings(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		res := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				res = append(res, strings.TrimSpace(s))
			}
		}
		return res
	case string:
		if strings.TrimSpace(v) != "" {
			return []string{strings.TrimSpace(v)}
		}
	}
	return nil
}

// Objects returns the array under key as nested Args, skipping non-objects.
func (a Args) Objects(key string) []Args {
	list, ok := a[key].([]any)
	if !ok {
		return nil
	}
	var res []Args
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			res = append(res, Args(m))
		}
	}
	return res
}

func (a Args) Map(key string) map[string]any {
	if m, ok := a[key].(map[string]any); ok {
		return m
	}
	return nil
}

func (a Args) JSON() string {
	raw, _ := json.Marshal(a)
	return string(raw)
}

func jsonRaw(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

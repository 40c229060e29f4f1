package api

// Structural extraction helpers. Backend fields can be missing or
// wrongly typed; every accessor returns the safe zero instead of
// panicking, so a normalized value never carries surprises into the UI.

func jsonStr(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func jsonNum(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func jsonInt(m map[string]any, key string) int {
	return int(jsonNum(m, key))
}

func jsonBool(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	if b, ok := m[key].(bool); ok {
		return b
	}
	return false
}

func jsonMap(m map[string]any, key string) map[string]any {
	if m != nil {
		if sub, ok := m[key].(map[string]any); ok {
			return sub
		}
	}
	return map[string]any{}
}

func jsonMapSlice(m map[string]any, key string) []map[string]any {
	out := []map[string]any{}
	if m == nil {
		return out
	}
	raw, ok := m[key].([]any)
	if !ok {
		return out
	}
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			out = append(out, entry)
		}
	}
	return out
}

func jsonStrSlice(m map[string]any, key string) []string {
	out := []string{}
	if m == nil {
		return out
	}
	raw, ok := m[key].([]any)
	if !ok {
		return out
	}
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func jsonIntMap(m map[string]any, key string) map[string]int {
	out := map[string]int{}
	if m == nil {
		return out
	}
	raw, ok := m[key].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = int(f)
		}
	}
	return out
}

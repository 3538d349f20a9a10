package credential

// dangerousKeys are dropped at every depth when a payload is surfaced into
// an execution context, preventing prototype-pollution of the consuming
// runtime. This applies unconditionally since the Code node's goja sandbox
// does host a real JS prototype chain.
var dangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// Sanitize returns a deep copy of payload with dangerousKeys removed at
// every depth; all other data is preserved by value.
func Sanitize(payload map[string]interface{}) map[string]interface{} {
	return sanitizeMap(payload).(map[string]interface{})
}

func sanitizeMap(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			if dangerousKeys[k] {
				continue
			}
			out[k] = sanitizeMap(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = sanitizeMap(vv)
		}
		return out
	default:
		return v
	}
}

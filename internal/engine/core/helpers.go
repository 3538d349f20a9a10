package core

import (
	"reflect"
	"strconv"
)

// GetString extracts a string from a parameters map with a default.
func GetString(m map[string]interface{}, key, defaultVal string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return defaultVal
}

// GetInt extracts an int from a parameters map with a default.
func GetInt(m map[string]interface{}, key string, defaultVal int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return defaultVal
}

// GetFloat extracts a float64 from a parameters map with a default.
func GetFloat(m map[string]interface{}, key string, defaultVal float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultVal
}

// GetBool extracts a bool from a parameters map with a default.
func GetBool(m map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return defaultVal
}

// GetMap extracts a nested map, defaulting to an empty one.
func GetMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return map[string]interface{}{}
}

// GetArray extracts a slice, defaulting to an empty one.
func GetArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key].([]interface{}); ok {
		return v
	}
	return []interface{}{}
}

// GetStringArray extracts a string slice from a parameters map.
func GetStringArray(m map[string]interface{}, key string) []string {
	arr := GetArray(m, key)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToFloat converts a loosely-typed value to float64.
func ToFloat(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	}
	return 0
}

// ToBool converts a loosely-typed value to bool.
func ToBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case int, int64, float64:
		return ToFloat(v) != 0
	}
	return v != nil
}

// IsEmpty reports whether v is nil or an empty string/slice/map.
func IsEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Array, reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// MergeMap merges maps left to right, later keys winning.
func MergeMap(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// CopyMap returns a shallow copy of m.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FirstJSON returns the JSON payload of the first item of the "main" port,
// or an empty map if absent — the shortcut $json uses in the expression
// context and the ifElse "first item" semantics.
func FirstJSON(items Items) map[string]interface{} {
	if len(items) == 0 {
		return map[string]interface{}{}
	}
	if items[0].JSON == nil {
		return map[string]interface{}{}
	}
	return items[0].JSON
}

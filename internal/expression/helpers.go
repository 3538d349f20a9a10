package expression

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

func bindHelpers(c *Context) {
	c.IsExecuted = func(name string) bool {
		_, ok := c.Node[name]
		return ok
	}
	c.HasData = func(name string) bool {
		v, ok := c.Node[name]
		if !ok {
			return false
		}
		return !isEmptyValue(v)
	}
	c.GetNodeData = func(name string, def interface{}) interface{} {
		if v, ok := c.Node[name]; ok {
			return v
		}
		return def
	}
	c.FirstExecuted = func(names []interface{}) interface{} {
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				continue
			}
			if _, ok := c.Node[name]; ok {
				return name
			}
		}
		return nil
	}
}

func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

// stringify implements the scalar-result rule of step 3:
// null -> "null", objects/arrays as canonical JSON, other primitives via
// the string cast. Go has no "undefined" distinct from nil, so a missing
// field surfaces the same as null (documented deviation, DESIGN.md).
func stringify(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return val
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toFloat(v interface{}) float64 {
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
	case bool:
		if val {
			return 1
		}
		return 0
	}
	return 0
}

func toBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case int, int64, float64:
		return toFloat(v) != 0
	}
	return v != nil
}

package expression

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ArrayIntrinsic backs the `Array` allow-listed constructor/namespace.
type ArrayIntrinsic struct {
	IsArray func(v interface{}) bool `expr:"isArray"`
	From    func(v interface{}) []interface{} `expr:"from"`
}

// ObjectIntrinsic backs the `Object` allow-listed constructor/namespace.
type ObjectIntrinsic struct {
	Keys   func(m map[string]interface{}) []interface{} `expr:"keys"`
	Values func(m map[string]interface{}) []interface{} `expr:"values"`
	Assign func(maps ...map[string]interface{}) map[string]interface{} `expr:"assign"`
}

// MathIntrinsic backs the `Math` allow-listed namespace.
type MathIntrinsic struct {
	Floor func(v float64) float64 `expr:"floor"`
	Ceil  func(v float64) float64 `expr:"ceil"`
	Round func(v float64) float64 `expr:"round"`
	Abs   func(v float64) float64 `expr:"abs"`
	Max   func(vs ...float64) float64 `expr:"max"`
	Min   func(vs ...float64) float64 `expr:"min"`
	Pow   func(a, b float64) float64 `expr:"pow"`
	Sqrt  func(v float64) float64 `expr:"sqrt"`
	Random func() float64 `expr:"random"`
	PI    float64 `expr:"PI"`
}

// JSONIntrinsic backs the `JSON` allow-listed namespace.
type JSONIntrinsic struct {
	Stringify func(v interface{}) string          `expr:"stringify"`
	Parse     func(s string) interface{}          `expr:"parse"`
}

// DateIntrinsic backs the `Date`/`DateTime` allow-listed namespaces.
type DateIntrinsic struct {
	Now    func() string                          `expr:"now"`
	Parse  func(s string) interface{}             `expr:"parse"`
	Format func(s string, layout string) string   `expr:"format"`
	Add    func(s string, amount int, unit string) string `expr:"add"`
}

// RegExpIntrinsic backs the `RegExp` allow-listed namespace.
type RegExpIntrinsic struct {
	Test  func(pattern, s string) bool `expr:"test"`
	Match func(pattern, s string) []interface{} `expr:"match"`
}

func bindIntrinsics(c *Context) {
	c.String = func(v interface{}) string { return stringify(v) }
	c.Number = toFloat
	c.Boolean = toBool
	c.ParseInt = func(s string, base int) interface{} {
		if base == 0 {
			base = 10
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), base, 64)
		if err != nil {
			return nil
		}
		return n
	}
	c.ParseFloat = func(s string) interface{} {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		return f
	}
	c.IsNaN = func(v interface{}) bool { return math.IsNaN(toFloat(v)) }
	c.IsFinite = func(v interface{}) bool {
		f := toFloat(v)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	c.EncodeURIComponent = url.QueryEscape
	c.DecodeURIComponent = func(s string) string {
		d, err := url.QueryUnescape(s)
		if err != nil {
			return s
		}
		return d
	}
	c.EncodeURI = func(s string) string {
		u := &url.URL{Path: s}
		return u.String()
	}
	c.DecodeURI = func(s string) string {
		d, err := url.PathUnescape(s)
		if err != nil {
			return s
		}
		return d
	}

	c.Array = ArrayIntrinsic{
		IsArray: func(v interface{}) bool { _, ok := v.([]interface{}); return ok },
		From: func(v interface{}) []interface{} {
			switch val := v.(type) {
			case []interface{}:
				return val
			case map[string]interface{}:
				keys := make([]string, 0, len(val))
				for k := range val {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				out := make([]interface{}, len(keys))
				for i, k := range keys {
					out[i] = k
				}
				return out
			case string:
				out := make([]interface{}, 0, len(val))
				for _, r := range val {
					out = append(out, string(r))
				}
				return out
			}
			return []interface{}{}
		},
	}
	c.ObjectNS = ObjectIntrinsic{
		Keys: func(m map[string]interface{}) []interface{} {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := make([]interface{}, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out
		},
		Values: func(m map[string]interface{}) []interface{} {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := make([]interface{}, len(keys))
			for i, k := range keys {
				out[i] = m[k]
			}
			return out
		},
		Assign: func(maps ...map[string]interface{}) map[string]interface{} {
			out := make(map[string]interface{})
			for _, m := range maps {
				for k, v := range m {
					out[k] = v
				}
			}
			return out
		},
	}
	c.Math = MathIntrinsic{
		Floor: math.Floor, Ceil: math.Ceil, Round: math.Round, Abs: math.Abs,
		Max: func(vs ...float64) float64 {
			if len(vs) == 0 {
				return 0
			}
			m := vs[0]
			for _, v := range vs[1:] {
				if v > m {
					m = v
				}
			}
			return m
		},
		Min: func(vs ...float64) float64 {
			if len(vs) == 0 {
				return 0
			}
			m := vs[0]
			for _, v := range vs[1:] {
				if v < m {
					m = v
				}
			}
			return m
		},
		Pow: math.Pow, Sqrt: math.Sqrt,
		Random: rand.Float64,
		PI:     math.Pi,
	}
	c.JSONNS = JSONIntrinsic{
		Stringify: func(v interface{}) string {
			b, err := json.Marshal(v)
			if err != nil {
				return ""
			}
			return string(b)
		},
		Parse: func(s string) interface{} {
			var v interface{}
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil
			}
			return v
		},
	}
	dateImpl := DateIntrinsic{
		Now: func() string { return time.Now().UTC().Format(time.RFC3339) },
		Parse: func(s string) interface{} {
			t, err := parseFlexibleTime(s)
			if err != nil {
				return nil
			}
			return t.Format(time.RFC3339)
		},
		Format: func(s string, layout string) string {
			t, err := parseFlexibleTime(s)
			if err != nil {
				return s
			}
			return t.Format(convertDateFormat(layout))
		},
		Add: func(s string, amount int, unit string) string {
			t, err := parseFlexibleTime(s)
			if err != nil {
				return s
			}
			return addUnit(t, amount, unit).Format(time.RFC3339)
		},
	}
	c.Date = dateImpl
	c.DateTime = dateImpl
	c.RegExp = RegExpIntrinsic{
		Test: func(pattern, s string) bool {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false
			}
			return re.MatchString(s)
		},
		Match: func(pattern, s string) []interface{} {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil
			}
			m := re.FindStringSubmatch(s)
			out := make([]interface{}, len(m))
			for i, v := range m {
				out[i] = v
			}
			return out
		},
	}
}

func addUnit(t time.Time, amount int, unit string) time.Time {
	switch unit {
	case "seconds", "second", "s":
		return t.Add(time.Duration(amount) * time.Second)
	case "minutes", "minute", "m":
		return t.Add(time.Duration(amount) * time.Minute)
	case "hours", "hour", "h":
		return t.Add(time.Duration(amount) * time.Hour)
	case "days", "day", "d":
		return t.AddDate(0, 0, amount)
	case "months", "month":
		return t.AddDate(0, amount, 0)
	case "years", "year", "y":
		return t.AddDate(amount, 0, 0)
	default:
		return t
	}
}

func parseFlexibleTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}

// convertDateFormat translates common JS/Moment-style tokens (YYYY, MM, DD,
// HH, mm, ss) into Go's reference-time layout.
func convertDateFormat(layout string) string {
	replacer := strings.NewReplacer(
		"YYYY", "2006", "YY", "06",
		"MM", "01", "DD", "02",
		"HH", "15", "mm", "04", "ss", "05",
	)
	return replacer.Replace(layout)
}

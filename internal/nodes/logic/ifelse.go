// Package logic implements the routing node types.
package logic

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "logic.ifElse",
		DisplayName: "If / Else",
		Group:       []string{"logic"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"true", "false"},
		Properties: []core.NodeProperty{
			{Name: "mode", DisplayName: "Mode", Kind: core.KindOptions, Default: "simple", Options: []interface{}{"simple", "combine", "grouped"}},
		},
		Node: &IfElseNode{},
	})
}

// IfElseNode is the conditional router: single input, two outputs
// true/false. It evaluates the first item only and routes every item on
// that single outcome (DESIGN NOTE 9.2).
type IfElseNode struct{}

func (n *IfElseNode) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	items := execCtx.InputData["main"]
	if len(items) == 0 {
		return core.PortData{"false": nil}, nil
	}

	subject := items[0].JSON
	result, err := evaluate(execCtx.Parameters, subject)
	if err != nil {
		return nil, err
	}

	if result {
		return core.PortData{"true": items}, nil
	}
	return core.PortData{"false": items}, nil
}

func evaluate(params map[string]interface{}, subject map[string]interface{}) (bool, error) {
	mode, _ := params["mode"].(string)
	switch mode {
	case "", "simple":
		conds := conditionList(params["conditions"])
		if len(conds) == 0 {
			if c := singleCondition(params); c != nil {
				conds = []map[string]interface{}{c}
			}
		}
		return evaluateCombined(conds, "and", subject)

	case "combine":
		combineWith, _ := params["combineWith"].(string)
		return evaluateCombined(conditionList(params["conditions"]), combineWith, subject)

	case "grouped":
		groups, _ := params["groups"].([]interface{})
		outerCombine, _ := params["combineWith"].(string)
		var results []bool
		for _, g := range groups {
			gm, ok := g.(map[string]interface{})
			if !ok {
				continue
			}
			innerCombine, _ := gm["combineWith"].(string)
			r, err := evaluateCombined(conditionList(gm["conditions"]), innerCombine, subject)
			if err != nil {
				return false, err
			}
			results = append(results, r)
		}
		return combineBools(results, outerCombine), nil

	default:
		return false, fmt.Errorf("logic.ifElse: unknown mode %q", mode)
	}
}

func singleCondition(params map[string]interface{}) map[string]interface{} {
	key, hasKey := params["key"]
	if !hasKey {
		return nil
	}
	return map[string]interface{}{"key": key, "expression": params["expression"], "value": params["value"]}
}

func conditionList(v interface{}) []map[string]interface{} {
	arr, _ := v.([]interface{})
	out := make([]map[string]interface{}, 0, len(arr))
	for _, c := range arr {
		if m, ok := c.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func evaluateCombined(conds []map[string]interface{}, combineWith string, subject map[string]interface{}) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	results := make([]bool, 0, len(conds))
	for _, c := range conds {
		key, _ := c["key"].(string)
		expr, _ := c["expression"].(string)
		r, err := evaluateCondition(key, expr, c["value"], subject)
		if err != nil {
			return false, err
		}
		results = append(results, r)
	}
	return combineBools(results, combineWith), nil
}

func combineBools(results []bool, combineWith string) bool {
	if len(results) == 0 {
		return true
	}
	if combineWith == "or" {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// evaluateCondition applies one of the closed set of predicate expressions
// against the dot-path lookup `key` in subject.
func evaluateCondition(key, expression string, want interface{}, subject map[string]interface{}) (bool, error) {
	got := nestedValue(subject, key)
	switch expression {
	case "equal":
		return looseEqual(got, want), nil
	case "notEqual":
		return !looseEqual(got, want), nil
	case "larger":
		return toFloat(got) > toFloat(want), nil
	case "largerEqual":
		return toFloat(got) >= toFloat(want), nil
	case "smaller":
		return toFloat(got) < toFloat(want), nil
	case "smallerEqual":
		return toFloat(got) <= toFloat(want), nil
	case "contains":
		return strings.Contains(toString(got), toString(want)), nil
	case "notContains":
		return !strings.Contains(toString(got), toString(want)), nil
	case "startsWith":
		return strings.HasPrefix(toString(got), toString(want)), nil
	case "endsWith":
		return strings.HasSuffix(toString(got), toString(want)), nil
	case "isEmpty":
		return isEmpty(got), nil
	case "isNotEmpty":
		return !isEmpty(got), nil
	case "regex":
		re, err := regexp.Compile(toString(want))
		if err != nil {
			return false, fmt.Errorf("logic.ifElse: invalid regex %q: %w", want, err)
		}
		return re.MatchString(toString(got)), nil
	default:
		return false, fmt.Errorf("logic.ifElse: unknown expression %q", expression)
	}
}

func nestedValue(data interface{}, path string) interface{} {
	path = strings.TrimPrefix(path, "$json.")
	if path == "" {
		return data
	}
	current := data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	}
	return 0, false
}

func toFloat(v interface{}) float64 {
	f, _ := asFloat(v)
	return f
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func isEmpty(v interface{}) bool {
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

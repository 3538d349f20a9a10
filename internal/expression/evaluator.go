// Package expression implements the sandboxed `{{ }}` expression evaluator:
// expr-lang/expr compilation against a struct-tagged environment, with
// exact single-fragment/concatenation and stringification rules applied
// on top of bare expr-lang evaluation
// correctly (see DESIGN.md).
package expression

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// fragmentRegex locates every {{ ... }} substring; non-greedy so adjacent
// fragments in one string don't merge.
var fragmentRegex = regexp.MustCompile(`\{\{\s*(.+?)\s*\}\}`)

// Failed is the ExpressionFailed error kind of, carrying the offending
// fragment and underlying reason.
type Failed struct {
	Fragment string
	Err      error
}

func (f *Failed) Error() string {
	return fmt.Sprintf("expression failed: %q: %v", f.Fragment, f.Err)
}

func (f *Failed) Unwrap() error { return f.Err }

// Evaluator compiles and runs {{ }} fragments. It caches compiled programs
// by source text since the same template is evaluated repeatedly across
// items/executions and expr.Compile is comparatively expensive.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

// New constructs an Evaluator.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

func (e *Evaluator) compile(src string, ctx *Context) (*vm.Program, error) {
	e.mu.Lock()
	if p, ok := e.cache[src]; ok {
		e.mu.Unlock()
		return p, nil
	}
	e.mu.Unlock()

	p, err := expr.Compile(src, expr.Env(ctx))
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[src] = p
	e.mu.Unlock()
	return p, nil
}

// evalFragment runs one fragment body against ctx, returning its raw typed
// result.
func (e *Evaluator) evalFragment(src string, ctx *Context) (interface{}, error) {
	program, err := e.compile(src, ctx)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(program, ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate implements evaluation steps 1-4: a template with no
// fragments is returned unchanged; a template consisting of exactly one
// fragment and nothing else returns that fragment's raw typed value;
// otherwise every fragment is stringified and substituted into the
// surrounding text.
func (e *Evaluator) Evaluate(template string, ctx *Context) (interface{}, error) {
	matches := fragmentRegex.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	if len(matches) == 1 {
		m := matches[0]
		if m[0] == 0 && m[1] == len(template) {
			src := template[m[2]:m[3]]
			v, err := e.evalFragment(src, ctx)
			if err != nil {
				return nil, &Failed{Fragment: src, Err: err}
			}
			return v, nil
		}
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(template[last:m[0]])
		src := template[m[2]:m[3]]
		v, err := e.evalFragment(src, ctx)
		if err != nil {
			return nil, &Failed{Fragment: src, Err: err}
		}
		sb.WriteString(stringify(v))
		last = m[1]
	}
	sb.WriteString(template[last:])
	return sb.String(), nil
}

// ResolveParameters walks a node's raw parameter map recursively, running
// every string value through Evaluate and preserving the shape of maps and
// slices.
func (e *Evaluator) ResolveParameters(params map[string]interface{}, ctx *Context) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		rv, err := e.resolveValue(v, ctx)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func (e *Evaluator) resolveValue(v interface{}, ctx *Context) (interface{}, error) {
	switch val := v.(type) {
	case string:
		if !strings.Contains(val, "{{") {
			return val, nil
		}
		return e.Evaluate(val, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			rv, err := e.resolveValue(vv, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			rv, err := e.resolveValue(vv, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

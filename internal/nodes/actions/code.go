package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "action.code",
		DisplayName: "Code",
		Group:       []string{"action"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "code", DisplayName: "JavaScript", Kind: core.KindString, Required: true},
			{Name: "timeout", DisplayName: "Timeout (s)", Kind: core.KindNumber, Default: 10},
		},
		Node: &CodeNode{},
	})
}

// CodeNode runs a JavaScript snippet in a sandboxed goja VM, one item at a
// time, and collects every return value other than undefined or null as an
// output item.
type CodeNode struct{}

func (n *CodeNode) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	code := getStr(execCtx.Parameters, "code", "")
	if code == "" {
		return nil, fmt.Errorf("action.code: code is required")
	}
	timeoutSec := getInt(execCtx.Parameters, "timeout", 10)

	items := execCtx.InputData["main"]
	if len(items) == 0 {
		items = core.Items{{JSON: map[string]interface{}{}}}
	}

	out := make(core.Items, 0, len(items))
	for i, it := range items {
		result, err := runJS(code, it.JSON, time.Duration(timeoutSec)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("action.code: item %d: %w", i, err)
		}
		if result == nil {
			continue
		}
		j, ok := result.(map[string]interface{})
		if !ok {
			j = map[string]interface{}{"result": result}
		}
		out = append(out, core.Item{JSON: j, PairedItem: &core.PairedItem{Item: i}})
	}
	return core.PortData{"main": out}, nil
}

func runJS(code string, json map[string]interface{}, timeout time.Duration) (interface{}, error) {
	vm := goja.New()
	timer := time.AfterFunc(timeout, func() { vm.Interrupt("action.code: execution timeout") })
	defer timer.Stop()

	if err := vm.Set("$json", json); err != nil {
		return nil, err
	}
	if err := vm.Set("console", map[string]interface{}{"log": func(...interface{}) {}}); err != nil {
		return nil, err
	}

	wrapped := fmt.Sprintf("(function() {\n%s\n})()", code)
	v, err := vm.RunString(wrapped)
	if err != nil {
		if ierr, ok := err.(*goja.InterruptedError); ok {
			return nil, fmt.Errorf("interrupted: %v", ierr.Value())
		}
		return nil, err
	}
	return exportValue(v), nil
}

func exportValue(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

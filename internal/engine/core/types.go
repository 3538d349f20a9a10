// Package core defines the uniform node contract and the process-wide node
// registry the execution engine drives nodes through.
package core

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Item is the unit of data flowing across a port.
type Item struct {
	JSON       map[string]interface{} `json:"json"`
	Binary     map[string]interface{} `json:"binary,omitempty"`
	PairedItem *PairedItem             `json:"pairedItem,omitempty"`
}

// PairedItem tracks which upstream item (and, optionally, which input port)
// an output item was derived from, so downstream nodes and the UI can trace
// data lineage across the graph.
type PairedItem struct {
	Item  int    `json:"item"`
	Input string `json:"input,omitempty"`
}

// Items is an ordered list of Item arriving on, or produced for, a port.
type Items []Item

// PortData maps a port name to the ordered items observed or produced on it.
type PortData map[string]Items

// Credentials is a lookup of decrypted credential payloads scoped to a
// single node invocation, keyed by credential type.
type Credentials map[string]map[string]interface{}

// RequestDescriptor is the mutable shape an outbound-auth helper mutates.
type RequestDescriptor struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    interface{}
}

// Helpers exposes capabilities a node may need beyond its own inputs, kept
// narrow and explicit so node code never reaches for ambient globals.
type Helpers struct {
	// RequestWithAuthentication applies credential-type authentication to a
	// descriptor and performs the outbound call, returning the HTTP response.
	RequestWithAuthentication func(ctx context.Context, credType string, payload map[string]interface{}, req *RequestDescriptor) (*http.Response, error)
}

// ExecutionContext is the invoke contract a node type's Execute receives.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string
	NodeID      string
	NodeName    string

	// InputData is the resolved, ordered items per input port.
	InputData PortData

	// Parameters are the node's already-expression-resolved parameters
	//.
	Parameters map[string]interface{}

	Credentials Credentials
	Helpers     Helpers

	Variables map[string]interface{}

	ItemIndex int
}

// Node is the sealed polymorphic invoke capability every node type
// implements.
type Node interface {
	Execute(ctx context.Context, execCtx *ExecutionContext) (PortData, error)
}

// Validator is implemented by node types that perform parameter validation
// beyond the declarative NodeProperty required/visible checks.
type Validator interface {
	Validate(parameters map[string]interface{}) []ValidationError
}

// ValidationError describes one failed property constraint.
type ValidationError struct {
	Property string
	Message  string
}

// DisplayOptions makes a property conditionally visible based on sibling
// property values.
type DisplayOptions struct {
	Show map[string][]interface{}
	Hide map[string][]interface{}
}

// Visible reports whether this property should be shown/required given the
// current payload of sibling values.
func (d *DisplayOptions) Visible(values map[string]interface{}) bool {
	if d == nil {
		return true
	}
	matches := func(cond map[string][]interface{}, wantMatch bool) (bool, bool) {
		if len(cond) == 0 {
			return true, false
		}
		for field, allowed := range cond {
			v, present := values[field]
			matched := false
			if present {
				for _, a := range allowed {
					if fmt.Sprintf("%v", a) == fmt.Sprintf("%v", v) {
						matched = true
						break
					}
				}
			}
			if matched != wantMatch {
				return false, true
			}
		}
		return true, true
	}
	if ok, evaluated := matches(d.Show, true); evaluated && !ok {
		return false
	}
	if ok, evaluated := matches(d.Hide, false); evaluated && !ok {
		return false
	}
	return true
}

// PropertyKind enumerates the declarative shapes a NodeProperty may take.
type PropertyKind string

const (
	KindString  PropertyKind = "string"
	KindPassword PropertyKind = "password"
	KindNumber  PropertyKind = "number"
	KindBoolean PropertyKind = "boolean"
	KindOptions PropertyKind = "options"
	KindHidden  PropertyKind = "hidden"
	KindCollection PropertyKind = "collection"
	KindJSON    PropertyKind = "json"
	KindCredential PropertyKind = "credential"
)

// NodeProperty describes one configurable parameter of a node type,
// including how it should be validated and when it should be shown.
type NodeProperty struct {
	Name        string
	DisplayName string
	Kind        PropertyKind
	Required    bool
	Default     interface{}
	Options     []interface{}
	DisplayOptions *DisplayOptions
}

// CredentialDefinition names a credential type a node may consume.
type CredentialDefinition struct {
	Type     string
	Required bool
}

// TriggerType enumerates the entry-node kinds recognized by the engine's
// topology pass.
type TriggerType string

const (
	TriggerWebhook       TriggerType = "webhook"
	TriggerSchedule      TriggerType = "schedule"
	TriggerManual        TriggerType = "manual"
	TriggerPolling       TriggerType = "polling"
	TriggerWorkflowCalled TriggerType = "workflow-called"
	TriggerError         TriggerType = "error"
)

// NodeType is the full declarative node-type definition.
type NodeType struct {
	Identifier  string
	DisplayName string
	Group       []string
	Version     int

	Inputs        []string
	Outputs       []string
	ServiceInputs []string

	Properties  []NodeProperty
	Credentials []CredentialDefinition

	// TriggerType is non-empty only for trigger-category node types.
	TriggerType TriggerType

	Node Node
}

// IsTrigger reports whether this node type is an entry node candidate.
func (t *NodeType) IsTrigger() bool { return t.TriggerType != "" }

// ValidateParameters walks the visible properties (respecting
// DisplayOptions) and checks required/type constraints.
func (t *NodeType) ValidateParameters(values map[string]interface{}) []ValidationError {
	var errs []ValidationError
	for _, p := range t.Properties {
		if !p.DisplayOptions.Visible(values) {
			continue
		}
		v, present := values[p.Name]
		if !present || v == nil {
			if p.Required {
				errs = append(errs, ValidationError{Property: p.Name, Message: "required property missing"})
			}
			continue
		}
		switch p.Kind {
		case KindNumber:
			switch v.(type) {
			case int, int64, float64:
			default:
				errs = append(errs, ValidationError{Property: p.Name, Message: "expected a number"})
			}
		case KindBoolean:
			if _, ok := v.(bool); !ok {
				errs = append(errs, ValidationError{Property: p.Name, Message: "expected a boolean"})
			}
		case KindOptions:
			if len(p.Options) > 0 {
				ok := false
				for _, opt := range p.Options {
					if fmt.Sprintf("%v", opt) == fmt.Sprintf("%v", v) {
						ok = true
						break
					}
				}
				if !ok {
					errs = append(errs, ValidationError{Property: p.Name, Message: "value not in allowed options"})
				}
			}
		}
		if nv, ok := t.nodeValidator(); ok {
			errs = append(errs, nv.Validate(values)...)
		}
	}
	return errs
}

func (t *NodeType) nodeValidator() (Validator, bool) {
	v, ok := t.Node.(Validator)
	return v, ok
}

// Registry is the process-wide, read-only-after-startup node-type registry
// built up by each node package's init(). It is also exposed as an explicit
// value (NewRegistry) so the engine and its tests can run against an
// isolated set of node types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*NodeType
}

// NewRegistry returns an empty, independently lockable registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*NodeType)}
}

// global is the process-wide singleton populated by node packages' init().
var global = NewRegistry()

// Global returns the process-wide registry.
func Global() *Registry { return global }

// Register adds a node type. Panics on duplicate identifiers — a
// programming error caught at startup, not a runtime condition.
func (r *Registry) Register(nt *NodeType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[nt.Identifier]; exists {
		panic(fmt.Sprintf("core: node type %q already registered", nt.Identifier))
	}
	r.types[nt.Identifier] = nt
}

// Register on the package-level singleton, used by node packages' init().
func Register(nt *NodeType) { global.Register(nt) }

// Get looks up a node type by identifier.
func (r *Registry) Get(identifier string) (*NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.types[identifier]
	return nt, ok
}

// List returns all registered node types sorted by identifier.
func (r *Registry) List() []*NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NodeType, 0, len(r.types))
	for _, nt := range r.types {
		out = append(out, nt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Count returns the number of registered node types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

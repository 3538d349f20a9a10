// Package credential implements the Credential Store: encryption at
// rest, type-schema validation, scoped injection into execution contexts,
// and per-type authentication application. Unlike the fixed-field
// CredentialData struct the domain models package still carries, a
// credential here is a fully generic map[string]interface{} payload
// validated against a declared type schema (see DESIGN.md).
package credential

import (
	"time"

	"github.com/google/uuid"
)

// PropertyKind enumerates the declarative value kinds a credential
// property may take.
type PropertyKind string

const (
	KindString   PropertyKind = "string"
	KindPassword PropertyKind = "password"
	KindNumber   PropertyKind = "number"
	KindBoolean  PropertyKind = "boolean"
	KindOptions  PropertyKind = "options"
	KindHidden   PropertyKind = "hidden"
)

// DisplayOptions makes a property conditionally visible based on sibling
// property values.
type DisplayOptions struct {
	Show map[string][]interface{}
	Hide map[string][]interface{}
}

// Visible reports whether this property should be shown/required given the
// current payload of sibling values. Visibility is evaluated before
// required-ness.
func (d *DisplayOptions) Visible(values map[string]interface{}) bool {
	if d == nil {
		return true
	}
	check := func(cond map[string][]interface{}, wantMatch bool) bool {
		for field, allowed := range cond {
			v, present := values[field]
			matched := false
			if present {
				for _, a := range allowed {
					if a == v {
						matched = true
						break
					}
				}
			}
			if matched != wantMatch {
				return false
			}
		}
		return true
	}
	return check(d.Show, true) && check(d.Hide, false)
}

// Property is one declared field of a credential type's payload schema.
type Property struct {
	Name           string
	DisplayName    string
	Kind           PropertyKind
	Required       bool
	Default        interface{}
	Options        []interface{}
	DisplayOptions *DisplayOptions
}

// TestResult is the return shape of a credential type's test hook.
type TestResult struct {
	Success bool
	Message string
}

// TestHook validates connectivity/shape for a credential type's payload.
type TestHook func(payload map[string]interface{}) TestResult

// AuthKind selects which applyAuthentication policy a type uses.
type AuthKind string

const (
	AuthHTTPBasic AuthKind = "httpBasicAuth"
	AuthAPIKey    AuthKind = "apiKey"
	AuthOAuth2    AuthKind = "oauth2"
)

// Type is a registered credential type definition.
type Type struct {
	Identifier  string
	DisplayName string
	Properties  []Property
	Auth        AuthKind
	Test        TestHook
}

// ValidationIssue is one failed property constraint.
type ValidationIssue struct {
	Property string
	Message  string
}

// Validate walks the type's visible properties (respecting DisplayOptions)
// and checks required-ness.
func (t *Type) Validate(payload map[string]interface{}) []ValidationIssue {
	var issues []ValidationIssue
	for _, p := range t.Properties {
		if p.Kind == KindHidden {
			continue
		}
		if !p.DisplayOptions.Visible(payload) {
			continue
		}
		v, present := payload[p.Name]
		if (!present || v == nil) && p.Required {
			issues = append(issues, ValidationIssue{Property: p.Name, Message: "required property missing"})
			continue
		}
		if present && p.Kind == KindOptions && len(p.Options) > 0 {
			ok := false
			for _, opt := range p.Options {
				if opt == v {
					ok = true
					break
				}
			}
			if !ok {
				issues = append(issues, ValidationIssue{Property: p.Name, Message: "value not in allowed options"})
			}
		}
	}
	return issues
}

// SharePermission is the access level a share grants.
type SharePermission string

const (
	PermissionUse  SharePermission = "USE"
	PermissionView SharePermission = "VIEW"
	PermissionEdit SharePermission = "EDIT"
)

// Share records that a credential is shared with a user or team.
type Share struct {
	CredentialID uuid.UUID
	UserID       *uuid.UUID
	TeamID       *uuid.UUID
	Permission   SharePermission
}

// Record is the persisted credential row.
type Record struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	Type       string
	Ciphertext string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

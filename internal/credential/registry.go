package credential

import "sync"

// Registry holds credential-type definitions, read-only after a startup
// registration phase, mirroring the node registry's shape
// (internal/engine/core.Registry) at a smaller scale.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{types: make(map[string]*Type)} }

// Register adds a credential type. Panics on duplicate identifiers.
func (r *Registry) Register(t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Identifier]; exists {
		panic("credential: type " + t.Identifier + " already registered")
	}
	r.types[t.Identifier] = t
}

// Get looks up a credential type by identifier.
func (r *Registry) Get(identifier string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[identifier]
	return t, ok
}

// BuiltinTypes returns the three built-in authentication policies
// (httpBasicAuth, apiKey, oauth2). NewStore does not register them itself;
// callers register them into the Registry they pass to NewStore.
func BuiltinTypes() []*Type {
	return []*Type{
		{
			Identifier:  "httpBasicAuth",
			DisplayName: "Basic Auth",
			Auth:        AuthHTTPBasic,
			Properties: []Property{
				{Name: "username", DisplayName: "Username", Kind: KindString, Required: true},
				{Name: "password", DisplayName: "Password", Kind: KindPassword, Required: true},
			},
			Test: func(payload map[string]interface{}) TestResult {
				if payload["username"] == nil || payload["password"] == nil {
					return TestResult{Success: false, Message: "username and password are required"}
				}
				return TestResult{Success: true, Message: "credentials present"}
			},
		},
		{
			Identifier:  "apiKey",
			DisplayName: "API Key",
			Auth:        AuthAPIKey,
			Properties: []Property{
				{Name: "apiKey", DisplayName: "API Key", Kind: KindPassword, Required: true},
				{Name: "headerName", DisplayName: "Header Name", Kind: KindString, Default: "Authorization"},
				{Name: "prefix", DisplayName: "Prefix", Kind: KindString},
			},
			Test: func(payload map[string]interface{}) TestResult {
				if payload["apiKey"] == nil {
					return TestResult{Success: false, Message: "apiKey is required"}
				}
				return TestResult{Success: true, Message: "api key present"}
			},
		},
		{
			Identifier:  "oauth2",
			DisplayName: "OAuth2",
			Auth:        AuthOAuth2,
			Properties: []Property{
				{Name: "clientId", DisplayName: "Client ID", Kind: KindString, Required: true},
				{Name: "clientSecret", DisplayName: "Client Secret", Kind: KindPassword, Required: true},
				{Name: "accessToken", DisplayName: "Access Token", Kind: KindPassword},
				{Name: "refreshToken", DisplayName: "Refresh Token", Kind: KindPassword},
			},
			Test: func(payload map[string]interface{}) TestResult {
				if payload["clientId"] == nil || payload["clientSecret"] == nil {
					return TestResult{Success: false, Message: "clientId and clientSecret are required"}
				}
				if payload["accessToken"] == nil {
					//: "format is valid but no access token" is a
					// distinct non-failure message for OAuth2 types.
					return TestResult{Success: true, Message: "configuration valid; no access token acquired yet"}
				}
				return TestResult{Success: true, Message: "access token present"}
			},
		},
	}
}

package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "action.http",
		DisplayName: "HTTP Request",
		Group:       []string{"action"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "method", DisplayName: "Method", Kind: core.KindOptions, Default: "GET", Options: []interface{}{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"}},
			{Name: "url", DisplayName: "URL", Kind: core.KindString, Required: true},
			{Name: "headers", DisplayName: "Headers", Kind: core.KindCollection},
			{Name: "queryParams", DisplayName: "Query Parameters", Kind: core.KindCollection},
			{Name: "body", DisplayName: "Body", Kind: core.KindJSON},
			{Name: "bodyType", DisplayName: "Body Type", Kind: core.KindOptions, Default: "json", Options: []interface{}{"json", "form", "raw"}},
			{Name: "timeout", DisplayName: "Timeout (s)", Kind: core.KindNumber, Default: 30},
			{Name: "authentication", DisplayName: "Authentication", Kind: core.KindCredential},
		},
		Node: &HTTPRequestNode{},
	})
}

// HTTPRequestNode issues one outbound HTTP call per invocation. When the
// node declares a credential, the call goes through
// Helpers.RequestWithAuthentication so the credential store's auth policy
// is applied instead of hand-rolled headers.
type HTTPRequestNode struct{}

func (n *HTTPRequestNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	p := execCtx.Parameters

	method := getStr(p, "method", "GET")
	urlStr := getStr(p, "url", "")
	if urlStr == "" {
		return nil, fmt.Errorf("action.http: url is required")
	}
	headers := getMap(p, "headers")
	queryParams := getMap(p, "queryParams")
	body := p["body"]
	bodyType := getStr(p, "bodyType", "json")
	timeoutSec := getInt(p, "timeout", 30)

	if len(queryParams) > 0 {
		u, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("action.http: invalid url: %w", err)
		}
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		u.RawQuery = q.Encode()
		urlStr = u.String()
	}

	headerMap := make(map[string]string, len(headers))
	for k, v := range headers {
		headerMap[k] = fmt.Sprintf("%v", v)
	}

	var resp *http.Response
	var err error

	credType, hasCred := firstCredentialType(execCtx.Credentials)
	if hasCred {
		payload := execCtx.Credentials[credType]
		desc := &core.RequestDescriptor{URL: urlStr, Method: method, Headers: headerMap, Body: body}
		resp, err = execCtx.Helpers.RequestWithAuthentication(ctx, credType, payload, desc)
	} else {
		resp, err = plainRequest(ctx, method, urlStr, headerMap, body, bodyType, timeoutSec)
	}
	if err != nil {
		return nil, fmt.Errorf("action.http: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("action.http: failed to read response: %w", err)
	}

	respHeaders := make(map[string]interface{}, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = v[0]
		}
	}

	var jsonBody interface{}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(respBody, &jsonBody)
	}

	result := map[string]interface{}{
		"status":  resp.StatusCode,
		"headers": respHeaders,
		"body":    string(respBody),
		"json":    jsonBody,
		"ok":      resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	return core.PortData{"main": core.Items{{JSON: result}}}, nil
}

func plainRequest(ctx context.Context, method, urlStr string, headers map[string]string, body interface{}, bodyType string, timeoutSec int) (*http.Response, error) {
	var reqBody io.Reader
	contentType := ""
	if body != nil && method != http.MethodGet && method != http.MethodHead {
		switch bodyType {
		case "form":
			if m, ok := body.(map[string]interface{}); ok {
				form := url.Values{}
				for k, v := range m {
					form.Set(k, fmt.Sprintf("%v", v))
				}
				reqBody = strings.NewReader(form.Encode())
				contentType = "application/x-www-form-urlencoded"
			}
		case "raw":
			if s, ok := body.(string); ok {
				reqBody = strings.NewReader(s)
			}
		default: // json
			b, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal json body: %w", err)
			}
			reqBody = bytes.NewReader(b)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}
	return client.Do(req)
}

func firstCredentialType(creds core.Credentials) (string, bool) {
	for t := range creds {
		return t, true
	}
	return "", false
}

func getStr(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func getInt(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

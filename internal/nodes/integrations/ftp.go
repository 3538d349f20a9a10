package integrations

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "integration.ftp",
		DisplayName: "FTP",
		Group:       []string{"integration"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "operation", DisplayName: "Operation", Kind: core.KindOptions, Default: "list",
				Options: []interface{}{"list", "download", "upload", "delete", "rename", "mkdir", "rmdir"}},
			{Name: "path", DisplayName: "Path", Kind: core.KindString},
			{Name: "oldPath", DisplayName: "Old Path", Kind: core.KindString},
			{Name: "newPath", DisplayName: "New Path", Kind: core.KindString},
			{Name: "content", DisplayName: "Content", Kind: core.KindString},
		},
		Credentials: []core.CredentialDefinition{{Type: "ftp", Required: true}},
		Node:        &FTPNode{},
	})
}

// FTPNode performs one FTP operation per invocation against a fresh
// connection, credentials supplied via the "ftp" credential type
// (host/port/username/password) rather than node parameters.
type FTPNode struct{}

func (n *FTPNode) Execute(_ context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	p := execCtx.Parameters
	operation := getStr(p, "operation", "list")

	conn, err := n.connect(execCtx.Credentials["ftp"])
	if err != nil {
		return nil, fmt.Errorf("integration.ftp: connection failed: %w", err)
	}
	defer func() { _ = conn.Quit() }()

	items := execCtx.InputData["main"]
	var input map[string]interface{}
	if len(items) > 0 {
		input = items[0].JSON
	}

	var result map[string]interface{}
	switch operation {
	case "download":
		result, err = n.download(conn, p)
	case "upload":
		result, err = n.upload(conn, p, input)
	case "delete":
		result, err = n.delete(conn, p)
	case "rename":
		result, err = n.rename(conn, p)
	case "mkdir":
		result, err = n.mkdir(conn, p)
	case "rmdir":
		result, err = n.rmdir(conn, p)
	default:
		result, err = n.list(conn, p)
	}
	if err != nil {
		return nil, fmt.Errorf("integration.ftp: %w", err)
	}
	return core.PortData{"main": core.Items{{JSON: result}}}, nil
}

func (n *FTPNode) connect(cred map[string]interface{}) (*ftp.ServerConn, error) {
	host := getStr(cred, "host", "")
	port := getInt(cred, "port", 21)
	username := getStr(cred, "username", "anonymous")
	password := getStr(cred, "password", "")
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}

	address := fmt.Sprintf("%s:%d", host, port)
	conn, err := ftp.Dial(address, ftp.DialWithTimeout(30*time.Second), ftp.DialWithDisabledEPSV(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := conn.Login(username, password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return conn, nil
}

func (n *FTPNode) list(conn *ftp.ServerConn, p map[string]interface{}) (map[string]interface{}, error) {
	path := getStr(p, "path", "/")
	entries, err := conn.List(path)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	files := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		files = append(files, map[string]interface{}{
			"name": e.Name, "size": e.Size, "type": entryTypeToString(e.Type),
			"time": e.Time.Format(time.RFC3339), "path": filepath.Join(path, e.Name),
			"isDir": e.Type == ftp.EntryTypeFolder,
		})
	}
	return map[string]interface{}{"files": files, "count": len(files), "path": path}, nil
}

func (n *FTPNode) download(conn *ftp.ServerConn, p map[string]interface{}) (map[string]interface{}, error) {
	path := getStr(p, "path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return map[string]interface{}{
		"content": string(data), "size": len(data), "path": path, "filename": filepath.Base(path),
	}, nil
}

func (n *FTPNode) upload(conn *ftp.ServerConn, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	path := getStr(p, "path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	content := getStr(p, "content", "")
	if content == "" && input != nil {
		if c, ok := input["content"].(string); ok {
			content = c
		} else if c, ok := input["data"].(string); ok {
			content = c
		}
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if err := conn.Stor(path, bytes.NewReader([]byte(content))); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return map[string]interface{}{
		"uploaded": true, "path": path, "size": len(content), "filename": filepath.Base(path),
	}, nil
}

func (n *FTPNode) delete(conn *ftp.ServerConn, p map[string]interface{}) (map[string]interface{}, error) {
	path := getStr(p, "path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := conn.Delete(path); err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}
	return map[string]interface{}{"deleted": true, "path": path, "filename": filepath.Base(path)}, nil
}

func (n *FTPNode) rename(conn *ftp.ServerConn, p map[string]interface{}) (map[string]interface{}, error) {
	oldPath, newPath := getStr(p, "oldPath", ""), getStr(p, "newPath", "")
	if oldPath == "" || newPath == "" {
		return nil, fmt.Errorf("oldPath and newPath are required")
	}
	if err := conn.Rename(oldPath, newPath); err != nil {
		return nil, fmt.Errorf("rename failed: %w", err)
	}
	return map[string]interface{}{"renamed": true, "oldPath": oldPath, "newPath": newPath}, nil
}

func (n *FTPNode) mkdir(conn *ftp.ServerConn, p map[string]interface{}) (map[string]interface{}, error) {
	path := getStr(p, "path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := conn.MakeDir(path); err != nil {
		return nil, fmt.Errorf("mkdir failed: %w", err)
	}
	return map[string]interface{}{"created": true, "path": path}, nil
}

func (n *FTPNode) rmdir(conn *ftp.ServerConn, p map[string]interface{}) (map[string]interface{}, error) {
	path := getStr(p, "path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := conn.RemoveDir(path); err != nil {
		return nil, fmt.Errorf("rmdir failed: %w", err)
	}
	return map[string]interface{}{"removed": true, "path": path}, nil
}

func entryTypeToString(t ftp.EntryType) string {
	switch t {
	case ftp.EntryTypeFile:
		return "file"
	case ftp.EntryTypeFolder:
		return "directory"
	case ftp.EntryTypeLink:
		return "link"
	default:
		return "unknown"
	}
}

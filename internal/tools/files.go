package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxReadBytes bounds a single read tool call.
const maxReadBytes = 4 << 20

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ReadTool reads files, returning text or base64 for images.
type ReadTool struct{}

type readArgs struct {
	Path   string `json:"path" jsonschema:"description=File path to read"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=Line offset to start from (0-based)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of lines"`
}

func (t *ReadTool) Name() string { return "read" }

func (t *ReadTool) Description() string {
	return "Read a file. Returns text, or base64 data for image files."
}

func (t *ReadTool) Schema() json.RawMessage {
	return schemaFor(&readArgs{})
}

func (t *ReadTool) Execute(_ context.Context, params json.RawMessage) (*Result, error) {
	var args readArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return Errorf("invalid parameters: %v", err), nil
	}
	if args.Path == "" {
		return Errorf("path is required"), nil
	}

	info, err := os.Stat(args.Path)
	if err != nil {
		return Errorf("stat %s: %v", args.Path, err), nil
	}
	if info.IsDir() {
		return Errorf("%s is a directory", args.Path), nil
	}
	if info.Size() > maxReadBytes {
		return Errorf("%s is too large (%d bytes, max %d)", args.Path, info.Size(), maxReadBytes), nil
	}

	data, err := os.ReadFile(args.Path)
	if err != nil {
		return Errorf("read %s: %v", args.Path, err), nil
	}

	if mime, ok := imageExtensions[strings.ToLower(filepath.Ext(args.Path))]; ok {
		return &Result{Content: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))}, nil
	}

	content := string(data)
	if args.Offset > 0 || args.Limit > 0 {
		lines := strings.Split(content, "\n")
		start := args.Offset
		if start > len(lines) {
			start = len(lines)
		}
		end := len(lines)
		if args.Limit > 0 && start+args.Limit < end {
			end = start + args.Limit
		}
		content = strings.Join(lines[start:end], "\n")
	}
	return &Result{Content: content}, nil
}

// WriteTool writes a file, creating parent directories as needed.
type WriteTool struct{}

type writeArgs struct {
	Path    string `json:"path" jsonschema:"description=File path to write"`
	Content string `json:"content" jsonschema:"description=Content to write"`
}

func (t *WriteTool) Name() string { return "write" }

func (t *WriteTool) Description() string {
	return "Write content to a file, replacing any existing content."
}

func (t *WriteTool) Schema() json.RawMessage {
	return schemaFor(&writeArgs{})
}

func (t *WriteTool) Execute(_ context.Context, params json.RawMessage) (*Result, error) {
	var args writeArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return Errorf("invalid parameters: %v", err), nil
	}
	if args.Path == "" {
		return Errorf("path is required"), nil
	}

	if dir := filepath.Dir(args.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Errorf("create directory %s: %v", dir, err), nil
		}
	}
	if err := os.WriteFile(args.Path, []byte(args.Content), 0o644); err != nil {
		return Errorf("write %s: %v", args.Path, err), nil
	}
	return &Result{Content: fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path)}, nil
}

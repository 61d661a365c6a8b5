package listfiles

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/macrae/convoke/internal/llm"
	"github.com/macrae/convoke/internal/tools/local"
)

const maxEntries = 500

type Tool struct{}

func New() *Tool {
	return &Tool{}
}

func (t *Tool) Name() string {
	return "list_files"
}

func (t *Tool) Description() string {
	return "List the files and directories inside a directory on the local filesystem. Use this to explore a project before reading specific files."
}

func (t *Tool) Parameters() llm.ParameterSchema {
	return llm.ParameterSchema{
		Type: "object",
		Properties: map[string]llm.Property{
			"path": {
				Type:        "string",
				Description: "Path to directory (absolute or relative to current directory, ~ expands to home directory). Defaults to the current directory.",
			},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (any, error) {
	pathArg, _ := args["path"].(string)
	if pathArg == "" {
		pathArg = "."
	}

	absPath, err := local.ExpandPath(pathArg)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", absPath)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied: %s", absPath)
		}
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is a file, not a directory: %s", absPath)
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	truncated := false
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
		truncated = true
	}

	files := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		files = append(files, map[string]any{
			"name":   entry.Name(),
			"is_dir": entry.IsDir(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i]["name"].(string) < files[j]["name"].(string)
	})

	return map[string]any{
		"path":      absPath,
		"entries":   files,
		"count":     len(files),
		"truncated": truncated,
	}, nil
}

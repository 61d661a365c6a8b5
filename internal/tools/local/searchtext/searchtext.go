package searchtext

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/macrae/convoke/internal/llm"
	"github.com/macrae/convoke/internal/tools/local"
)

const (
	maxMatches  = 200
	maxFileSize = 1 * 1024 * 1024 // 1MB per file
)

type Tool struct{}

func New() *Tool {
	return &Tool{}
}

func (t *Tool) Name() string {
	return "search_text"
}

func (t *Tool) Description() string {
	return "Search for a text substring in files under a directory. Returns matching lines with file paths and line numbers. Case-sensitive."
}

func (t *Tool) Parameters() llm.ParameterSchema {
	return llm.ParameterSchema{
		Type: "object",
		Properties: map[string]llm.Property{
			"query": {
				Type:        "string",
				Description: "Text to search for",
			},
			"path": {
				Type:        "string",
				Description: "Directory to search under (defaults to the current directory)",
			},
		},
		Required: []string{"query"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("query parameter is required and must be a string")
	}

	pathArg, _ := args["path"].(string)
	if pathArg == "" {
		pathArg = "."
	}

	absPath, err := local.ExpandPath(pathArg)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path: %w", err)
	}

	var matches []map[string]any
	truncated := false

	err = filepath.WalkDir(absPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// Skip hidden directories like .git
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxFileSize {
			return nil
		}

		fileMatches, err := searchFile(path, query)
		if err != nil {
			return nil
		}
		for _, m := range fileMatches {
			if len(matches) >= maxMatches {
				truncated = true
				return filepath.SkipAll
			}
			matches = append(matches, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return map[string]any{
		"query":     query,
		"path":      absPath,
		"matches":   matches,
		"count":     len(matches),
		"truncated": truncated,
	}, nil
}

func searchFile(path, query string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.Contains(line, "\x00") {
			return nil, nil // binary file
		}
		if strings.Contains(line, query) {
			matches = append(matches, map[string]any{
				"file": path,
				"line": lineNo,
				"text": strings.TrimSpace(line),
			})
		}
	}
	return matches, scanner.Err()
}

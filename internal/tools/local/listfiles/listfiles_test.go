package listfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	tool := New()
	result, err := tool.Execute(context.Background(), map[string]any{"path": dir})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := result.(map[string]any)
	entries := out["entries"].([]map[string]any)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0]["name"] != "a.txt" {
		t.Errorf("entries[0] = %v, want a.txt (sorted)", entries[0]["name"])
	}
	if entries[2]["name"] != "sub" || entries[2]["is_dir"] != true {
		t.Errorf("entries[2] = %v, want sub directory", entries[2])
	}
	if out["truncated"] != false {
		t.Error("truncated = true, want false")
	}
}

func TestExecute_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := New()
	if _, err := tool.Execute(context.Background(), map[string]any{"path": file}); err == nil {
		t.Error("Execute() on a file should return error")
	}
}

func TestExecute_Missing(t *testing.T) {
	tool := New()
	_, err := tool.Execute(context.Background(), map[string]any{"path": filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Error("Execute() on missing directory should return error")
	}
}

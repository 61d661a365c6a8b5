package tools

import (
	"github.com/macrae/convoke/internal/tools/local/echo"
	"github.com/macrae/convoke/internal/tools/local/listfiles"
	"github.com/macrae/convoke/internal/tools/local/readfile"
	"github.com/macrae/convoke/internal/tools/local/searchtext"
	"github.com/macrae/convoke/internal/tools/local/writefile"
)

// NewDefaultRegistry creates a registry with all built-in tools registered
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()

	registry.Register(echo.NewTool())
	registry.Register(readfile.New())
	registry.Register(writefile.New())
	registry.Register(listfiles.New())
	registry.Register(searchtext.New())

	return registry
}

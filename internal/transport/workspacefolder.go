package transport

import (
	"os"
	"path/filepath"

	"github.com/lsproxy-go/lsproxy/internal/langtag"
)

// ResolveWorkspaceFolder picks the directory an analyzer session should
// treat as its LSP root for a workspace rooted at dir, per def's
// WorkspaceFolderStrategy (spec §4.C). This generalizes the per-language
// root-resolution rules in original_source/lsproxy/src/lsp/languages/
// {golang,ruby_lsp,ruby_sorbet}.rs: a single caller-given root is usually
// right, but a language with multi-module tooling (go.work, Cargo
// workspaces) should be pointed at the nearest ancestor that declares
// that multi-module boundary, since the caller's root may be a
// subdirectory of a larger workspace.
func ResolveWorkspaceFolder(dir string, def langtag.Definition) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	switch def.WorkspaceFolderStrategy {
	case langtag.StrategyNearestMultiModuleMarker:
		if found, ok := nearestAncestorWith(abs, def.MultiModuleMarkers); ok {
			return found, nil
		}
		if found, ok := nearestAncestorWith(abs, def.RootMarkers); ok {
			return found, nil
		}
		return abs, nil
	case langtag.StrategySingleRoot:
		fallthrough
	default:
		return abs, nil
	}
}

// nearestAncestorWith walks from start up through its ancestors (start
// first) looking for a directory containing any of markers, stopping at
// the filesystem root.
func nearestAncestorWith(start string, markers []string) (string, bool) {
	if len(markers) == 0 {
		return "", false
	}
	dir := start
	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

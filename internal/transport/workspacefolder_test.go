package transport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lsproxy-go/lsproxy/internal/langtag"
)

func TestResolveWorkspaceFolderSingleRoot(t *testing.T) {
	dir := t.TempDir()
	def := langtag.Definition{WorkspaceFolderStrategy: langtag.StrategySingleRoot}

	got, err := ResolveWorkspaceFolder(dir, def)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.Abs(dir)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveWorkspaceFolderNearestMultiModuleMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.work"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "services", "api")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	def := langtag.Definition{
		WorkspaceFolderStrategy: langtag.StrategyNearestMultiModuleMarker,
		MultiModuleMarkers:      []string{"go.work"},
		RootMarkers:             []string{"go.mod"},
	}

	got, err := ResolveWorkspaceFolder(sub, def)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("got %q, want %q (should climb to the go.work ancestor)", got, want)
	}
}

func TestResolveWorkspaceFolderFallsBackToRootMarkerThenCallerDir(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "pkg")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "go.mod"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	def := langtag.Definition{
		WorkspaceFolderStrategy: langtag.StrategyNearestMultiModuleMarker,
		MultiModuleMarkers:      []string{"go.work"},
		RootMarkers:             []string{"go.mod"},
	}

	got, err := ResolveWorkspaceFolder(sub, def)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.Abs(sub)
	if got != want {
		t.Errorf("got %q, want %q (no go.work anywhere, should stop at the go.mod marker)", got, want)
	}

	deeper := filepath.Join(sub, "nested")
	if err := os.MkdirAll(deeper, 0o755); err != nil {
		t.Fatal(err)
	}
	noMarkers := langtag.Definition{WorkspaceFolderStrategy: langtag.StrategyNearestMultiModuleMarker}
	got, err = ResolveWorkspaceFolder(deeper, noMarkers)
	if err != nil {
		t.Fatal(err)
	}
	want, _ = filepath.Abs(deeper)
	if got != want {
		t.Errorf("got %q, want %q (no markers configured, caller dir wins)", got, want)
	}
}

package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lsproxy-go/lsproxy/internal/analyzer"
	"github.com/lsproxy-go/lsproxy/internal/config"
	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
	"github.com/lsproxy-go/lsproxy/internal/workspace"
)

func newTestManager(t *testing.T, spawnCount *int32) (*Manager, func()) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc Greet() {\n}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	registry, err := langtag.Load()
	if err != nil {
		t.Fatal(err)
	}
	docs, err := workspace.NewDocuments(root)
	if err != nil {
		t.Fatal(err)
	}

	spawn := func(ctx context.Context, tag langtag.Tag, def langtag.Definition, root string, extraArgs []string) (analyzer.Client, error) {
		if spawnCount != nil {
			atomic.AddInt32(spawnCount, 1)
		}
		return newFakeClient(tag), nil
	}

	m := New(config.Config{}, registry, root, docs, spawn)
	return m, func() { docs.Close() }
}

func TestManagerListFiles(t *testing.T) {
	m, cleanup := newTestManager(t, nil)
	defer cleanup()

	entries, err := m.ListFiles(nil, nil, false, workspace.KindFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path != "main.go" {
		t.Fatalf("got %+v", entries)
	}
}

// TestManagerSpawnsSessionOnce drives many concurrent requests for the
// same language and checks exactly one analyzer session is spawned,
// spec §4.G's lazy-per-language-session rule.
func TestManagerSpawnsSessionOnce(t *testing.T) {
	var spawns int32
	m, cleanup := newTestManager(t, &spawns)
	defer cleanup()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.FindDefinition(ctx, "main.go", protocol.Position{Line: 2, Character: 5}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&spawns); got != 1 {
		t.Fatalf("spawned %d sessions, want 1", got)
	}
}

func TestManagerDefinitionsInFileFallsBackToScanner(t *testing.T) {
	m, cleanup := newTestManager(t, nil)
	defer cleanup()

	syms, err := m.DefinitionsInFile(context.Background(), "main.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 1 || syms[0].Name != "Greet" {
		t.Fatalf("got %+v", syms)
	}
}

func TestManagerGetSymbolFromPosition(t *testing.T) {
	m, cleanup := newTestManager(t, nil)
	defer cleanup()

	sym, ok, err := m.GetSymbolFromPosition(context.Background(), "main.go", protocol.Position{Line: 2, Character: 6})
	if err != nil {
		t.Fatal(err)
	}
	if !ok || sym.Name != "Greet" {
		t.Fatalf("got %+v, %v", sym, ok)
	}
}

func TestManagerUnsupportedFileType(t *testing.T) {
	m, cleanup := newTestManager(t, nil)
	defer cleanup()

	if err := os.WriteFile(filepath.Join(m.root, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := m.FindDefinition(context.Background(), "README.md", protocol.Position{})
	if err == nil {
		t.Fatal("expected an error for an unsupported file type")
	}
}

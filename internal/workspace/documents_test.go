package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDocumentsOverlayTakesPrecedence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	d, err := NewDocuments(root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()
	got, err := d.Get(ctx, "main.go")
	if err != nil {
		t.Fatal(err)
	}
	if got != "package main\n" {
		t.Fatalf("got %q", got)
	}

	d.Open("main.go", "package main // edited\n")
	got, err = d.Get(ctx, "main.go")
	if err != nil {
		t.Fatal(err)
	}
	if got != "package main // edited\n" {
		t.Fatalf("overlay not applied, got %q", got)
	}

	d.CloseDoc("main.go")
	got, err = d.Get(ctx, "main.go")
	if err != nil {
		t.Fatal(err)
	}
	if got != "package main\n" {
		t.Fatalf("expected read-through after close, got %q", got)
	}
}

func TestDocumentsMissingFile(t *testing.T) {
	root := t.TempDir()
	d, err := NewDocuments(root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if _, err := d.Get(context.Background(), "nope.go"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDocumentsCachePopulatesFromDisk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	d, err := NewDocuments(root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()
	if _, err := d.Get(ctx, "a.go"); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.cache.Get("a.go"); !ok {
		t.Fatal("expected a.go to be cached after read-through")
	}

	_ = os.WriteFile(filepath.Join(root, "a.go"), []byte("package a // changed\n"), 0o644)
}

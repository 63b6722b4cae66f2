// Package workspace implements the workspace scanner (spec §4.E) and the
// document cache/overlay the manager reads file content through
// (spec §3/§5), generalizing the teacher's single embedded overlay
// filesystem into a standalone, per-workspace component.
package workspace

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind restricts a Search to files, directories, or both.
type Kind int

const (
	KindAny Kind = iota
	KindFile
	KindDir
)

// Entry is one matched workspace member.
type Entry struct {
	// Path is workspace-relative and slash-separated, regardless of OS.
	Path  string
	IsDir bool
}

// DefaultIgnoreFile is the ignore-file name consulted when a Search asks
// to respect them; ".gitignore" is the only convention every language in
// the registry shares.
const DefaultIgnoreFile = ".gitignore"

// Search walks root and returns every entry whose workspace-relative
// path matches at least one of includeGlobs (all entries, if empty) and
// none of excludeGlobs, filtered by kind, honoring per-directory ignore
// files when respectIgnoreFiles is set (spec §4.E).
func Search(root string, includeGlobs, excludeGlobs []string, respectIgnoreFiles bool, kind Kind) ([]Entry, error) {
	im := newIgnoreMatcher(DefaultIgnoreFile)
	if respectIgnoreFiles {
		im.loadDir(root, "")
	}

	var out []Entry
	seen := make(map[string]bool)
	emit := func(path string, isDir bool) {
		if seen[path] {
			return
		}
		seen[path] = true
		out = append(out, Entry{Path: path, IsDir: isDir})
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if respectIgnoreFiles {
				if im.Ignored(rel, true) {
					return filepath.SkipDir
				}
				im.loadDir(root, rel)
			}
			if excludedDir(rel, excludeGlobs) {
				// spec §4.E: "Exclude globs short-circuit directory
				// descent when they match a directory."
				return filepath.SkipDir
			}
			if kind == KindFile {
				return nil
			}
			if matches(rel, includeGlobs, excludeGlobs) {
				emit(rel, true)
			}
			return nil
		}

		if respectIgnoreFiles && im.Ignored(rel, false) {
			return nil
		}
		if !matches(rel, includeGlobs, excludeGlobs) {
			return nil
		}
		if kind == KindDir {
			// spec §4.E: "When kind = dir and a file matched, the file's
			// parent directory is emitted instead."
			parent := filepath.ToSlash(filepath.Dir(rel))
			if parent == "." {
				return nil // the file's parent is the workspace root itself
			}
			emit(parent, true)
			return nil
		}
		emit(rel, false)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// excludedDir reports whether rel (a directory) matches any exclude
// glob, in which case the walk must not descend into it at all rather
// than rejecting its contents file by file.
func excludedDir(rel string, excludeGlobs []string) bool {
	for _, g := range excludeGlobs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

func matches(rel string, includeGlobs, excludeGlobs []string) bool {
	for _, g := range excludeGlobs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return false
		}
	}
	if len(includeGlobs) == 0 {
		return true
	}
	for _, g := range includeGlobs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

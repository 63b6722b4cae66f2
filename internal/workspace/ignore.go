package workspace

import (
	"bufio"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreMatcher evaluates a small, directory-scoped subset of gitignore
// semantics: each directory's own ignore file patterns apply to it and
// its descendants, the way git itself layers .gitignore files. No
// ecosystem gitignore parser appears anywhere in the example pack (the
// only precedent, standardbeagle-lci's GitignoreParser, hand-rolls its
// own regexp-based matcher too); this reimplements that precedent using
// the doublestar matcher already wired for include/exclude globs instead
// of a second regexp engine.
type ignoreMatcher struct {
	fileName string
	// byDir maps a workspace-relative directory ("" for the root) to the
	// patterns declared directly in that directory's ignore file.
	byDir map[string][]string
}

func newIgnoreMatcher(fileName string) *ignoreMatcher {
	return &ignoreMatcher{fileName: fileName, byDir: make(map[string][]string)}
}

// loadDir reads relDir's ignore file (if any) under root and records its
// patterns. relDir is "" for the workspace root.
func (m *ignoreMatcher) loadDir(root, relDir string) {
	f, err := os.Open(path.Join(root, relDir, m.fileName))
	if err != nil {
		return
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) > 0 {
		m.byDir[relDir] = patterns
	}
}

// Ignored reports whether relPath (workspace-relative, slash-separated)
// is excluded by any ignore file in an ancestor directory.
func (m *ignoreMatcher) Ignored(relPath string, isDir bool) bool {
	dir := path.Dir(relPath)
	if dir == "." {
		dir = ""
	}
	ignored := false
	for {
		for _, pat := range m.byDir[dir] {
			negate := strings.HasPrefix(pat, "!")
			p := strings.TrimPrefix(pat, "!")
			dirOnly := strings.HasSuffix(p, "/")
			p = strings.TrimSuffix(p, "/")
			if dirOnly && !isDir {
				continue
			}
			base := relPath
			if !strings.Contains(p, "/") {
				base = path.Base(relPath)
			}
			if match, _ := doublestar.Match(p, base); match {
				ignored = !negate
			}
		}
		if dir == "" {
			break
		}
		dir = path.Dir(dir)
		if dir == "." {
			dir = ""
		}
	}
	return ignored
}

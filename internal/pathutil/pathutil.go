// Package pathutil converts between workspace-relative paths, absolute
// filesystem paths, and file:// URIs. It also guards against path traversal
// outside the workspace root (spec §6).
package pathutil

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ToURI converts an absolute filesystem path to a file:// URI, matching the
// LSP convention of percent-encoding each path component.
func ToURI(path string) string {
	prefix := "file://"
	if !strings.HasPrefix(path, "/") {
		prefix += "/"
	}
	path = slash(path)
	parts := strings.Split(path, "/")
	for i := range parts {
		parts[i] = url.QueryEscape(parts[i])
	}
	return prefix + strings.Join(parts, "/")
}

// FromURI converts a file:// URI back to an absolute filesystem path.
func FromURI(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	p := strings.TrimPrefix(uri, "file://")
	if unescaped, err := url.QueryUnescape(p); err == nil {
		p = unescaped
	}
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		// Windows: file:///C:/foo -> C:/foo
		p = p[1:]
	}
	return p
}

func slash(p string) string {
	if len(p) > 1 && p[1] == ':' {
		return strings.ReplaceAll(p, `\`, "/")
	}
	return p
}

// HasPrefix reports whether s is prefix or a descendant of prefix, treating
// path components atomically (unlike strings.HasPrefix).
func HasPrefix(s, prefix string) bool {
	if prefix == "" {
		return true
	}
	prefixSlash := prefix
	if !strings.HasSuffix(prefixSlash, "/") {
		prefixSlash += "/"
	}
	return s == prefix || strings.HasPrefix(s, prefixSlash)
}

// Rel joins root and a workspace-relative path, rejecting any result that
// escapes root (path traversal guard, spec §6).
func Rel(root, relPath string) (string, error) {
	cleanRel := filepath.Clean("/" + relPath)[1:] // neutralizes ../ prefixes
	abs := filepath.Join(root, cleanRel)
	if !HasPrefix(abs, filepath.Clean(root)) {
		return "", errors.Errorf("path %q escapes workspace root", relPath)
	}
	return abs, nil
}

// ToRel converts an absolute path under root back to a workspace-relative,
// slash-separated path.
func ToRel(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", errors.Errorf("path %q escapes workspace root", abs)
	}
	return filepath.ToSlash(rel), nil
}

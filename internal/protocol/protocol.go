// Package protocol defines the gateway's external position/range/location
// types (spec §3) layered on top of github.com/sourcegraph/go-lsp's wire
// types, which the analyzer sessions speak on the wire.
package protocol

import (
	lsp "github.com/sourcegraph/go-lsp"
)

// Position is a zero-based (line, character) pair, UTF-16 code units per
// the LSP convention.
type Position = lsp.Position

// Range is a half-open [start, end) pair of positions.
type Range = lsp.Range

// Location is a URI plus a range, as returned by the analyzer.
type Location = lsp.Location

// FilePosition is the external, workspace-relative-path variant of
// Position used at the HTTP façade boundary.
type FilePosition struct {
	Path     string   `json:"path"`
	Position Position `json:"position"`
}

// SymbolKind mirrors lsp.SymbolKind for the definitions-in-file response.
type SymbolKind = lsp.SymbolKind

// Symbol describes a symbol found by the syntactic scanner: its name,
// kind, the identifier's own range, and the full range of the symbol
// (e.g. the whole function body for a function symbol).
type Symbol struct {
	Name            string     `json:"name"`
	Kind            SymbolKind `json:"kind"`
	IdentifierRange Range      `json:"identifier_range"`
	Range           Range      `json:"range"`
}

// Reference is a single occurrence of a symbol name found by the scanner,
// used to seed find-referenced-symbols (spec §4.H).
type Reference struct {
	Name  string `json:"name"`
	Range Range  `json:"range"`
}

// Contains reports whether p falls within r ([start, end)).
func Contains(r Range, p Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Character < r.Start.Character {
		return false
	}
	if p.Line == r.End.Line && p.Character >= r.End.Character {
		return false
	}
	return true
}

// LessLocation orders locations by (path, start.line, start.character) as
// required by spec invariant 6.
func LessLocation(pathA, pathB string, a, b Range) bool {
	if pathA != pathB {
		return pathA < pathB
	}
	if a.Start.Line != b.Start.Line {
		return a.Start.Line < b.Start.Line
	}
	return a.Start.Character < b.Start.Character
}

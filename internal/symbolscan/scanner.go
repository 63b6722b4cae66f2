// Package symbolscan is the syntactic, analyzer-independent symbol and
// reference scanner spec.md marks out of scope for the hard core
// ("Symbol scanner (external)"). It exists only so the in-scope
// components that call it — definitions-in-file, get-symbol-from-position,
// and the candidate-reference seeding for find-referenced-symbols — have
// a real collaborator, grounded on theRebelliousNerd-codenerd's
// indexDocumentLocked (internal/mangle/lsp.go): one regexp pass per line,
// generalized from one declarative language to a small per-language
// pattern table.
package symbolscan

import (
	"strings"

	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
)

// ScanSymbols returns every declaration symbolscan recognizes in
// content, in line order, for definitions-in-file. Declaration kinds with
// a body (function, method, class, struct, interface) get a Range
// spanning the enclosing block, computed by enclosingRange; other kinds
// (e.g. var/const) keep Range equal to IdentifierRange.
func ScanSymbols(tag langtag.Tag, content string) []protocol.Symbol {
	rules := declRules[tag]
	if len(rules) == 0 {
		return nil
	}
	var out []protocol.Symbol
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, rule := range rules {
			m := rule.pattern.FindStringSubmatchIndex(line)
			if m == nil || len(m) < 4 {
				continue
			}
			name := line[m[2]:m[3]]
			startCol := m[2]
			idRange := protocol.Range{
				Start: protocol.Position{Line: lineNum, Character: startCol},
				End:   protocol.Position{Line: lineNum, Character: startCol + len(name)},
			}
			rng := idRange
			if hasBody(rule.kind) {
				rng = enclosingRange(tag, lines, lineNum)
			}
			out = append(out, protocol.Symbol{
				Name:            name,
				Kind:            rule.kind,
				IdentifierRange: idRange,
				Range:           rng,
			})
			break // one declaration kind per line
		}
	}
	return out
}

// EnclosingSymbol returns the innermost scanned symbol whose Range
// contains pos, e.g. the function or class body a reference occurrence
// sits inside of. Used by the composite find-referenced-symbols query to
// scope a full_scan=false lookup to the enclosing symbol's range (spec
// §4.H).
func EnclosingSymbol(tag langtag.Tag, content string, pos protocol.Position) (protocol.Symbol, bool) {
	var best protocol.Symbol
	found := false
	bestSpan := -1
	for _, sym := range ScanSymbols(tag, content) {
		if !protocol.Contains(sym.Range, pos) {
			continue
		}
		span := sym.Range.End.Line - sym.Range.Start.Line
		if !found || span < bestSpan {
			best, bestSpan, found = sym, span, true
		}
	}
	return best, found
}

// ScanReferences returns every candidate identifier occurrence in
// content that is not a recognized keyword, seeding the composite
// find-referenced-symbols fan-out (spec §4.H).
func ScanReferences(tag langtag.Tag, content string) []protocol.Reference {
	stop := keywords[tag]
	var out []protocol.Reference
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, m := range identifierPattern.FindAllStringIndex(line, -1) {
			name := line[m[0]:m[1]]
			if stop != nil && stop[name] {
				continue
			}
			out = append(out, protocol.Reference{
				Name: name,
				Range: protocol.Range{
					Start: protocol.Position{Line: lineNum, Character: m[0]},
					End:   protocol.Position{Line: lineNum, Character: m[1]},
				},
			})
		}
	}
	return out
}

// SymbolAt returns the identifier token at pos, if any, used to resolve
// get-symbol-from-position into a name the manager can hand to the
// analyzer's definition/references calls.
func SymbolAt(content string, pos protocol.Position) (protocol.Symbol, bool) {
	lines := strings.Split(content, "\n")
	if pos.Line < 0 || pos.Line >= len(lines) {
		return protocol.Symbol{}, false
	}
	line := lines[pos.Line]
	for _, m := range identifierPattern.FindAllStringIndex(line, -1) {
		if pos.Character >= m[0] && pos.Character < m[1] {
			name := line[m[0]:m[1]]
			rng := protocol.Range{
				Start: protocol.Position{Line: pos.Line, Character: m[0]},
				End:   protocol.Position{Line: pos.Line, Character: m[1]},
			}
			return protocol.Symbol{Name: name, IdentifierRange: rng, Range: rng}, true
		}
	}
	return protocol.Symbol{}, false
}

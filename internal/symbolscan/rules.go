package symbolscan

import (
	"regexp"
	"strings"

	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
)

// declRule matches one declaration idiom on a single line; group 1 is the
// declared name.
type declRule struct {
	pattern *regexp.Regexp
	kind    protocol.SymbolKind
}

// LSP SymbolKind values (github.com/sourcegraph/go-lsp), spelled out here
// since symbolscan has no analyzer connection to ask.
const (
	skFunction protocol.SymbolKind = 12
	skClass    protocol.SymbolKind = 5
	skMethod   protocol.SymbolKind = 6
	skVariable protocol.SymbolKind = 13
	skStruct   protocol.SymbolKind = 23
	skInterf   protocol.SymbolKind = 11
)

// declRules is keyed by language tag; languages sharing a family's
// surface syntax (typescript/javascript-like) reuse the same rule set by
// listing it under each tag explicitly, since the registry does not
// encode syntactic kinship.
var declRules = map[langtag.Tag][]declRule{
	"go": {
		{regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?(\w+)\s*\(`), skFunction},
		{regexp.MustCompile(`^\s*type\s+(\w+)\s+struct\b`), skStruct},
		{regexp.MustCompile(`^\s*type\s+(\w+)\s+interface\b`), skInterf},
		{regexp.MustCompile(`^\s*(?:var|const)\s+(\w+)\b`), skVariable},
	},
	"python": {
		{regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`), skFunction},
		{regexp.MustCompile(`^\s*class\s+(\w+)\b`), skClass},
	},
	"typescript": {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`), skFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)\b`), skClass},
		{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)\b`), skInterf},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=`), skVariable},
	},
	"rust": {
		{regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+(\w+)\s*[<(]`), skFunction},
		{regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+(\w+)\b`), skStruct},
		{regexp.MustCompile(`^\s*(?:pub\s+)?trait\s+(\w+)\b`), skInterf},
		{regexp.MustCompile(`^\s*(?:pub\s+)?enum\s+(\w+)\b`), skClass},
	},
	"java": {
		{regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:static\s+)?(?:final\s+)?class\s+(\w+)\b`), skClass},
		{regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:static\s+)?\w[\w<>\[\]]*\s+(\w+)\s*\([^;]*\)\s*\{`), skMethod},
		{regexp.MustCompile(`^\s*interface\s+(\w+)\b`), skInterf},
	},
	"csharp": {
		{regexp.MustCompile(`^\s*(?:public|private|protected|internal)?\s*(?:static\s+)?class\s+(\w+)\b`), skClass},
		{regexp.MustCompile(`^\s*(?:public|private|protected|internal)?\s*(?:static\s+)?\w[\w<>\[\]]*\s+(\w+)\s*\([^;]*\)\s*\{`), skMethod},
		{regexp.MustCompile(`^\s*interface\s+(\w+)\b`), skInterf},
	},
	"php": {
		{regexp.MustCompile(`^\s*function\s+(\w+)\s*\(`), skFunction},
		{regexp.MustCompile(`^\s*class\s+(\w+)\b`), skClass},
	},
	"cpp": {
		{regexp.MustCompile(`^\s*(?:class|struct)\s+(\w+)\b`), skClass},
		{regexp.MustCompile(`^\s*\w[\w:<>,\s\*&]*[\s\*&](\w+)\s*\([^;{]*\)\s*\{`), skFunction},
	},
	"ruby": {
		{regexp.MustCompile(`^\s*def\s+(\w+)`), skMethod},
		{regexp.MustCompile(`^\s*class\s+(\w+)\b`), skClass},
		{regexp.MustCompile(`^\s*module\s+(\w+)\b`), skClass},
	},
}

func init() {
	// ruby_sorbet inherits plain Ruby's syntax: type annotations live in
	// sig blocks above a def, not in the declaration line itself.
	declRules["ruby_sorbet"] = declRules["ruby"]
}

// hasBody reports whether kind denotes a declaration with an enclosing
// block body, as opposed to a single-line declaration like a var/const.
func hasBody(kind protocol.SymbolKind) bool {
	switch kind {
	case skFunction, skClass, skMethod, skStruct, skInterf:
		return true
	default:
		return false
	}
}

// braceLangs lists tags whose block bodies are brace-delimited.
var braceLangs = map[langtag.Tag]bool{
	"go": true, "typescript": true, "rust": true, "java": true,
	"csharp": true, "php": true, "cpp": true,
}

// enclosingRange computes a declaration's full range starting at
// declLine, to the granularity each language family's surface syntax
// allows: matching braces, indentation, or Ruby's end keyword.
func enclosingRange(tag langtag.Tag, lines []string, declLine int) protocol.Range {
	switch {
	case braceLangs[tag]:
		return braceEnclosingRange(lines, declLine)
	case tag == "python":
		return indentEnclosingRange(lines, declLine)
	case tag == "ruby", tag == "ruby_sorbet":
		return rubyEnclosingRange(lines, declLine)
	default:
		return protocol.Range{
			Start: protocol.Position{Line: declLine, Character: 0},
			End:   protocol.Position{Line: declLine, Character: len(lines[declLine])},
		}
	}
}

// braceEnclosingRange tracks brace depth from declLine until it returns
// to zero, covering C-family function/class/struct/interface bodies.
func braceEnclosingRange(lines []string, declLine int) protocol.Range {
	start := protocol.Position{Line: declLine, Character: 0}
	depth := 0
	opened := false
	for i := declLine; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return protocol.Range{Start: start, End: protocol.Position{Line: i, Character: len(lines[i])}}
		}
	}
	return protocol.Range{Start: start, End: protocol.Position{Line: declLine, Character: len(lines[declLine])}}
}

// indentEnclosingRange treats every subsequent line indented deeper than
// declLine as part of the body, covering Python def/class blocks.
func indentEnclosingRange(lines []string, declLine int) protocol.Range {
	start := protocol.Position{Line: declLine, Character: 0}
	declIndent := indentWidth(lines[declLine])
	end := declLine
	for i := declLine + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if indentWidth(lines[i]) <= declIndent {
			break
		}
		end = i
	}
	return protocol.Range{Start: start, End: protocol.Position{Line: end, Character: len(lines[end])}}
}

func indentWidth(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}

// rubyBlockOpeners/rubyBlockCloser approximate Ruby's end-delimited
// blocks; modifier-form if/unless/while (no matching end) aren't
// distinguished from the block form, so nesting through those is
// approximate.
var (
	rubyBlockOpeners = regexp.MustCompile(`\b(?:def|class|module|do|begin)\b`)
	rubyBlockCloser  = regexp.MustCompile(`\bend\b`)
)

func rubyEnclosingRange(lines []string, declLine int) protocol.Range {
	start := protocol.Position{Line: declLine, Character: 0}
	depth := 0
	for i := declLine; i < len(lines); i++ {
		depth += len(rubyBlockOpeners.FindAllString(lines[i], -1))
		depth -= len(rubyBlockCloser.FindAllString(lines[i], -1))
		if depth <= 0 {
			return protocol.Range{Start: start, End: protocol.Position{Line: i, Character: len(lines[i])}}
		}
	}
	return protocol.Range{Start: start, End: protocol.Position{Line: declLine, Character: len(lines[declLine])}}
}

// identifierPattern extracts candidate identifier tokens for reference
// scanning; keywords are filtered by the caller's per-language stoplist.
var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// keywords lists common reserved words to exclude from reference
// candidates, trimmed to what's cheap to enumerate rather than
// exhaustive per-language grammars.
var keywords = map[langtag.Tag]map[string]bool{
	"go": setOf("func", "type", "struct", "interface", "var", "const", "if", "else", "for", "range",
		"return", "package", "import", "switch", "case", "default", "break", "continue", "go", "defer",
		"map", "chan", "select", "nil", "true", "false"),
	"python": setOf("def", "class", "if", "elif", "else", "for", "while", "return", "import", "from",
		"as", "with", "try", "except", "finally", "pass", "break", "continue", "lambda", "None", "True", "False"),
	"typescript": setOf("function", "class", "interface", "const", "let", "var", "if", "else", "for",
		"while", "return", "import", "export", "from", "async", "await", "new", "this", "extends", "implements"),
	"rust": setOf("fn", "struct", "trait", "enum", "impl", "pub", "let", "mut", "if", "else", "for",
		"while", "loop", "match", "return", "use", "mod", "self", "Self"),
}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

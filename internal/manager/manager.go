// Package manager routes gateway operations to the right per-language
// analyzer session, spawning sessions lazily and keeping one per
// language tag (spec §4.G), and implements
// the composite find-referenced-symbols query (spec §4.H). This
// generalizes the teacher's single embedded LangHandler, reached
// directly by its own jsonrpc2 server loop, into a table of sessions
// reached through the analyzer.Client interface — in-process
// (internal/transport) or containerized (internal/remoteclient).
package manager

import (
	"context"
	"sort"
	"sync"

	"github.com/neelance/parallel"

	"github.com/lsproxy-go/lsproxy/internal/analyzer"
	"github.com/lsproxy-go/lsproxy/internal/config"
	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
	"github.com/lsproxy-go/lsproxy/internal/symbolscan"
	"github.com/lsproxy-go/lsproxy/internal/workspace"
)

// maxDetectFanOut bounds how many languages' include globs are probed
// concurrently by DetectLanguages, the same neelance/parallel idiom
// composite.go uses for reference-site fan-out.
const maxDetectFanOut = 8

// SpawnFunc starts a new analyzer session for tag at the workspace root,
// with any per-language argument overrides applied. cmd/lsproxy supplies
// one backed by internal/transport (in-process) or
// internal/orchestrator+internal/remoteclient (containerized), selected
// per spec.md's "analyzer variant" choice; the manager itself is
// agnostic to which.
type SpawnFunc func(ctx context.Context, tag langtag.Tag, def langtag.Definition, root string, extraArgs []string) (analyzer.Client, error)

// Manager routes workspace and symbol operations to lazily spawned
// analyzer sessions.
type Manager struct {
	cfg      config.Config
	registry *langtag.Registry
	root     string
	docs     *workspace.Documents
	spawn    SpawnFunc

	mu       sync.Mutex
	sessions map[langtag.Tag]analyzer.Client
}

// New builds a Manager rooted at workspaceRoot.
func New(cfg config.Config, registry *langtag.Registry, workspaceRoot string, docs *workspace.Documents, spawn SpawnFunc) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: registry,
		root:     workspaceRoot,
		docs:     docs,
		spawn:    spawn,
		sessions: make(map[langtag.Tag]analyzer.Client),
	}
}

// ListFiles runs the workspace scanner over the manager's root (spec §4.E).
func (m *Manager) ListFiles(includeGlobs, excludeGlobs []string, respectIgnoreFiles bool, kind workspace.Kind) ([]workspace.Entry, error) {
	return workspace.Search(m.root, includeGlobs, excludeGlobs, respectIgnoreFiles, kind)
}

// ReadSourceCode returns relPath's current content (overlay-aware).
func (m *Manager) ReadSourceCode(ctx context.Context, relPath string) (string, error) {
	return m.docs.Get(ctx, relPath)
}

// detect resolves relPath's language, peeking its content only if the
// registry's content-inspection hook requires it (spec §4.D).
func (m *Manager) detect(ctx context.Context, relPath string) (langtag.Tag, error) {
	tag, ok := m.registry.Detect(relPath, func() []byte {
		content, err := m.docs.Get(ctx, relPath)
		if err != nil {
			return nil
		}
		return []byte(content)
	})
	if !ok {
		return "", gwerrors.Newf(gwerrors.KindUnsupportedFileType, "no language registered for %s", relPath)
	}
	if !m.cfg.LanguageEnabled(string(tag)) {
		return "", gwerrors.Newf(gwerrors.KindUnsupportedFileType, "language %s is disabled", tag)
	}
	return tag, nil
}

// session returns the lazily spawned analyzer for tag, spawning it if
// this is the first request for that language (spec §4.G).
func (m *Manager) session(ctx context.Context, tag langtag.Tag) (analyzer.Client, error) {
	m.mu.Lock()
	if s, ok := m.sessions[tag]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	def, ok := m.registry.Get(tag)
	if !ok {
		return nil, gwerrors.Newf(gwerrors.KindUnsupportedFileType, "unknown language %s", tag)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[tag]; ok {
		return s, nil
	}
	s, err := m.spawn(ctx, tag, def, m.root, m.cfg.PerLanguageArgs[string(tag)])
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindNoClientAvailable, err, "spawning analyzer "+string(tag))
	}
	m.sessions[tag] = s
	return s, nil
}

// ensureOpen resolves relPath's language, spawns its session if needed,
// and opens the document on it, the lazy-open-before-request rule (spec
// §4.C) the manager is responsible for driving.
func (m *Manager) ensureOpen(ctx context.Context, relPath string) (langtag.Tag, analyzer.Client, error) {
	tag, err := m.detect(ctx, relPath)
	if err != nil {
		return "", nil, err
	}
	client, err := m.session(ctx, tag)
	if err != nil {
		return "", nil, err
	}
	content, err := m.docs.Get(ctx, relPath)
	if err != nil {
		return "", nil, gwerrors.Wrap(gwerrors.KindFileNotFound, err, relPath)
	}
	if err := client.DidOpen(ctx, relPath, content); err != nil {
		return "", nil, err
	}
	return tag, client, nil
}

// FindDefinition resolves go-to-definition at pos in relPath (spec §4.G).
func (m *Manager) FindDefinition(ctx context.Context, relPath string, pos protocol.Position) ([]protocol.Location, error) {
	_, client, err := m.ensureOpen(ctx, relPath)
	if err != nil {
		return nil, err
	}
	return client.Definition(ctx, relPath, pos)
}

// FindReferences resolves find-references at pos in relPath (spec §4.G).
func (m *Manager) FindReferences(ctx context.Context, relPath string, pos protocol.Position) ([]protocol.Location, error) {
	_, client, err := m.ensureOpen(ctx, relPath)
	if err != nil {
		return nil, err
	}
	return client.References(ctx, relPath, pos)
}

// DefinitionsInFile lists symbols declared in relPath, preferring the
// analyzer's own outline and falling back to the syntactic scanner when
// the analyzer reports no outline support (NotImplemented) or no analyzer
// session could be spawned (NoClientAvailable). A disabled or unsupported
// language is returned as an error, not scanned.
func (m *Manager) DefinitionsInFile(ctx context.Context, relPath string) ([]protocol.Symbol, error) {
	tag, client, err := m.ensureOpen(ctx, relPath)
	if err == nil {
		syms, symErr := client.DocumentSymbol(ctx, relPath)
		if symErr == nil {
			return syms, nil
		}
		if gwerrors.KindOf(symErr) != gwerrors.KindNotImplemented {
			return nil, symErr
		}
		// fall through to the syntactic scanner below
	} else if gwerrors.KindOf(err) != gwerrors.KindNoClientAvailable {
		return nil, err
	} else {
		tag, err = m.detect(ctx, relPath)
		if err != nil {
			return nil, err
		}
	}
	content, err := m.docs.Get(ctx, relPath)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindFileNotFound, err, relPath)
	}
	return symbolscan.ScanSymbols(tag, content), nil
}

// GetSymbolFromPosition resolves the identifier token at pos in relPath
// using the syntactic scanner (spec §4.G): purely textual, so it never
// needs an analyzer session.
func (m *Manager) GetSymbolFromPosition(ctx context.Context, relPath string, pos protocol.Position) (protocol.Symbol, bool, error) {
	content, err := m.docs.Get(ctx, relPath)
	if err != nil {
		return protocol.Symbol{}, false, gwerrors.Wrap(gwerrors.KindFileNotFound, err, relPath)
	}
	sym, ok := symbolscan.SymbolAt(content, pos)
	return sym, ok, nil
}

// FindIdentifier backs the /v1/symbol/find-identifier façade operation
// (spec §6): it scans relPath syntactically for every declaration or
// reference named name, used when a caller already knows the name it
// wants (e.g. from an outline) rather than a position to probe. Matches
// list the declarations first, then the references, each group in source
// order; when near is non-nil, that list is then stably ordered by
// distance from it.
func (m *Manager) FindIdentifier(ctx context.Context, relPath, name string, near *protocol.Position) ([]protocol.Symbol, error) {
	tag, err := m.detect(ctx, relPath)
	if err != nil {
		return nil, err
	}
	content, err := m.docs.Get(ctx, relPath)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindFileNotFound, err, relPath)
	}

	var matches []protocol.Symbol
	for _, sym := range symbolscan.ScanSymbols(tag, content) {
		if sym.Name == name {
			matches = append(matches, sym)
		}
	}
	for _, ref := range symbolscan.ScanReferences(tag, content) {
		if ref.Name != name {
			continue
		}
		matches = append(matches, protocol.Symbol{
			Name:            ref.Name,
			IdentifierRange: ref.Range,
			Range:           ref.Range,
		})
	}

	if near != nil {
		sort.SliceStable(matches, func(i, j int) bool {
			return distance(matches[i].IdentifierRange.Start, *near) < distance(matches[j].IdentifierRange.Start, *near)
		})
	}
	return matches, nil
}

// distance is a crude (line, character) ordering distance used only to
// rank find-identifier matches relative to a hint position, not a real
// geometric measure.
func distance(a, b protocol.Position) int {
	lineDiff := a.Line - b.Line
	if lineDiff < 0 {
		lineDiff = -lineDiff
	}
	charDiff := a.Character - b.Character
	if charDiff < 0 {
		charDiff = -charDiff
	}
	return lineDiff*100000 + charDiff
}

// Shutdown terminates every spawned analyzer session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]analyzer.Client, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[langtag.Tag]analyzer.Client)
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DetectLanguages reports which enabled registry languages have at least
// one matching file in the workspace (spec §4.G: "Discover which
// languages have any files in the workspace"), probing each language's
// extension globs concurrently with bounded fan-out (grounded on
// langserver/symbol.go's neelance/parallel use, per DESIGN.md).
func (m *Manager) DetectLanguages() (map[string]bool, error) {
	defs := m.registry.All()

	results := make(map[string]bool, len(defs))
	var mu sync.Mutex
	var firstErr error

	par := parallel.NewRun(maxDetectFanOut)
	for _, def := range defs {
		if def.VariantOf != "" || !m.cfg.LanguageEnabled(string(def.Tag)) {
			continue
		}
		par.Acquire()
		go func(def langtag.Definition) {
			defer par.Release()
			globs := make([]string, len(def.Extensions))
			for i, ext := range def.Extensions {
				globs[i] = "**/*" + ext
			}
			entries, err := workspace.Search(m.root, globs, nil, true, workspace.KindFile)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[string(def.Tag)] = len(entries) > 0
		}(def)
	}
	_ = par.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// FileExists reports whether relPath can be read through the workspace
// documents (the open-document overlay or disk), the pre-condition
// path-bearing façade operations check before dispatching (spec §4.G).
// It does not consult the list-files enumeration, so a readable file
// that ignore rules leave out of that list still counts as existing.
func (m *Manager) FileExists(ctx context.Context, relPath string) (bool, error) {
	if _, err := m.docs.Get(ctx, relPath); err != nil {
		if gwerrors.KindOf(err) == gwerrors.KindFileNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

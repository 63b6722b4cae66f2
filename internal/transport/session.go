// Package transport implements the JSON-RPC analyzer client (spec §4.A,
// §4.B, §4.C): it spawns a language server subprocess, frames and
// correlates requests over its stdio with sourcegraph/jsonrpc2, and
// exposes the lifecycle state machine and typed LSP operations the
// manager drives. This generalizes the teacher's single embedded Go
// analyzer (langserver.LangHandler, talked to in-process) into an
// out-of-process client usable for any language in the registry.
package transport

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/atomic"

	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/pathutil"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
)

// AnalyzerSession is a live connection to one language's analyzer
// subprocess, rooted at one resolved workspace folder. The manager owns
// one session per language tag (spec §4.G).
type AnalyzerSession struct {
	Tag  langtag.Tag
	Root string // resolved workspace folder, absolute path

	def langtag.Definition

	mu    sync.RWMutex
	state State
	conn  *jsonrpc2.Conn
	cmd   *exec.Cmd
	rwc   *procRWC

	reqCounter atomic.Uint64

	openMu sync.Mutex
	opened map[string]bool // workspace-relative path -> open
}

// Start spawns the analyzer subprocess for def at workspaceRoot, resolves
// its actual LSP root per def.WorkspaceFolderStrategy, and drives the
// initialize/initialized handshake (spec §4.C: Starting -> Initializing
// -> Ready). extraArgs are appended after def.Args (config.PerLanguageArgs
// overrides).
func Start(ctx context.Context, tag langtag.Tag, def langtag.Definition, workspaceRoot string, extraArgs []string) (*AnalyzerSession, error) {
	root, err := ResolveWorkspaceFolder(workspaceRoot, def)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindSpawnTimeout, err, "resolving workspace folder")
	}

	args := make([]string, 0, len(def.Args)+len(extraArgs))
	args = append(args, def.Args...)
	args = append(args, extraArgs...)

	cmd := exec.CommandContext(ctx, def.Command, args...)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), def.Env...)
	cmd.Stderr = os.Stderr

	rwc, err := startProcess(cmd)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindSpawnTimeout, err, "spawning analyzer "+string(tag))
	}

	s, err := newSession(ctx, tag, def, root, rwc)
	if err != nil {
		return nil, err
	}
	s.cmd = cmd
	s.rwc = rwc
	return s, nil
}

// newSession drives the handshake over an already-open transport. Factored
// out of Start so tests can exercise the jsonrpc2 framing and state machine
// against an in-memory stream instead of a real subprocess.
func newSession(ctx context.Context, tag langtag.Tag, def langtag.Definition, root string, rwc io.ReadWriteCloser) (*AnalyzerSession, error) {
	s := &AnalyzerSession{
		Tag:    tag,
		Root:   root,
		def:    def,
		state:  StateStarting,
		opened: make(map[string]bool),
	}

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	s.conn = jsonrpc2.NewConn(ctx, stream, newPassiveHandler(string(tag)))

	s.setState(StateInitializing)
	if err := s.handshake(ctx); err != nil {
		s.setState(StateTerminated)
		_ = s.conn.Close()
		return nil, err
	}
	s.setState(StateReady)
	return s, nil
}

func (s *AnalyzerSession) handshake(ctx context.Context) error {
	params := lsp.InitializeParams{
		RootPath: s.Root,
		RootURI:  lsp.DocumentURI(pathutil.ToURI(s.Root)),
	}
	var result lsp.InitializeResult
	if err := s.conn.Call(ctx, "initialize", params, &result, jsonrpc2.PickID(s.nextID())); err != nil {
		return gwerrors.Wrap(gwerrors.KindInitializeFailed, err, "initialize")
	}
	if err := s.conn.Notify(ctx, "initialized", struct{}{}); err != nil {
		return gwerrors.Wrap(gwerrors.KindInitializeFailed, err, "initialized")
	}
	return nil
}

func (s *AnalyzerSession) nextID() jsonrpc2.ID {
	return jsonrpc2.ID{Num: s.reqCounter.Inc()}
}

func (s *AnalyzerSession) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *AnalyzerSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *AnalyzerSession) uriFor(relPath string) lsp.DocumentURI {
	return lsp.DocumentURI(pathutil.ToURI(filepath.Join(s.Root, relPath)))
}

func (s *AnalyzerSession) call(ctx context.Context, method string, params, result interface{}) error {
	s.mu.RLock()
	conn, state := s.conn, s.state
	s.mu.RUnlock()
	if state != StateReady {
		return gwerrors.Newf(gwerrors.KindNoClientAvailable, "analyzer %s is %s, not ready", s.Tag, state)
	}
	if err := conn.Call(ctx, method, params, result, jsonrpc2.PickID(s.nextID())); err != nil {
		if rpcErr, ok := err.(*jsonrpc2.Error); ok && rpcErr.Code == jsonrpc2.CodeMethodNotFound {
			return gwerrors.Wrap(gwerrors.KindNotImplemented, err, method)
		}
		return gwerrors.Wrap(gwerrors.KindTransportFailure, err, method)
	}
	return nil
}

func (s *AnalyzerSession) isOpen(relPath string) bool {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	return s.opened[relPath]
}

// DidOpen notifies the analyzer a document is open with content, the
// lazy-open-before-request rule (spec §4.C): the manager calls this
// before the first request that touches a given file.
func (s *AnalyzerSession) DidOpen(ctx context.Context, relPath, content string) error {
	s.openMu.Lock()
	if s.opened[relPath] {
		s.openMu.Unlock()
		return nil
	}
	s.openMu.Unlock()

	s.mu.RLock()
	conn, state := s.conn, s.state
	s.mu.RUnlock()
	if state != StateReady {
		return gwerrors.Newf(gwerrors.KindNoClientAvailable, "analyzer %s is %s, not ready", s.Tag, state)
	}

	params := lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        s.uriFor(relPath),
			LanguageID: string(s.Tag),
			Version:    1,
			Text:       content,
		},
	}
	if err := conn.Notify(ctx, "textDocument/didOpen", params); err != nil {
		return gwerrors.Wrap(gwerrors.KindTransportFailure, err, "textDocument/didOpen")
	}
	s.openMu.Lock()
	s.opened[relPath] = true
	s.openMu.Unlock()
	return nil
}

// DidClose notifies the analyzer a document was closed.
func (s *AnalyzerSession) DidClose(ctx context.Context, relPath string) error {
	s.openMu.Lock()
	if !s.opened[relPath] {
		s.openMu.Unlock()
		return nil
	}
	delete(s.opened, relPath)
	s.openMu.Unlock()

	s.mu.RLock()
	conn, state := s.conn, s.state
	s.mu.RUnlock()
	if state != StateReady {
		return nil
	}
	params := lsp.DidCloseTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: s.uriFor(relPath)},
	}
	if err := conn.Notify(ctx, "textDocument/didClose", params); err != nil {
		return gwerrors.Wrap(gwerrors.KindTransportFailure, err, "textDocument/didClose")
	}
	return nil
}

// Definition resolves go-to-definition at pos in relPath, which must
// already be open (see DidOpen).
func (s *AnalyzerSession) Definition(ctx context.Context, relPath string, pos protocol.Position) ([]protocol.Location, error) {
	if !s.isOpen(relPath) {
		return nil, gwerrors.Newf(gwerrors.KindValidation, "document %s is not open", relPath)
	}
	params := lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: s.uriFor(relPath)},
		Position:     pos,
	}
	var locs []lsp.Location
	if err := s.call(ctx, "textDocument/definition", params, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// References resolves find-references at pos in relPath, including the
// declaration site (spec §4.G).
func (s *AnalyzerSession) References(ctx context.Context, relPath string, pos protocol.Position) ([]protocol.Location, error) {
	if !s.isOpen(relPath) {
		return nil, gwerrors.Newf(gwerrors.KindValidation, "document %s is not open", relPath)
	}
	params := lsp.ReferenceParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: s.uriFor(relPath)},
			Position:     pos,
		},
		Context: lsp.ReferenceContext{IncludeDeclaration: true},
	}
	var locs []lsp.Location
	if err := s.call(ctx, "textDocument/references", params, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// DocumentSymbol asks the analyzer for its own symbol outline of relPath.
// go-lsp's wire type is the flat SymbolInformation list (pre-hierarchical
// DocumentSymbol LSP versions), so IdentifierRange and Range both fall
// back to the symbol's declared location range.
func (s *AnalyzerSession) DocumentSymbol(ctx context.Context, relPath string) ([]protocol.Symbol, error) {
	if !s.isOpen(relPath) {
		return nil, gwerrors.Newf(gwerrors.KindValidation, "document %s is not open", relPath)
	}
	params := lsp.DocumentSymbolParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: s.uriFor(relPath)},
	}
	var syms []lsp.SymbolInformation
	if err := s.call(ctx, "textDocument/documentSymbol", params, &syms); err != nil {
		return nil, err
	}
	out := make([]protocol.Symbol, len(syms))
	for i, si := range syms {
		out[i] = protocol.Symbol{
			Name:            si.Name,
			Kind:            si.Kind,
			IdentifierRange: si.Location.Range,
			Range:           si.Location.Range,
		}
	}
	return out, nil
}

// Shutdown drives the LSP shutdown/exit sequence and terminates the
// subprocess (spec §4.C: any state -> Terminated).
func (s *AnalyzerSession) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	s.state = StateTerminated
	s.mu.Unlock()

	if conn != nil {
		var shutdownResult interface{}
		_ = conn.Call(ctx, "shutdown", nil, &shutdownResult, jsonrpc2.PickID(s.nextID()))
		_ = conn.Notify(ctx, "exit", nil)
		_ = conn.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Wait()
	}
	return nil
}

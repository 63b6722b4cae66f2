package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
)

// pipeRWC joins a read side and a write side of two io.Pipes into a single
// io.ReadWriteCloser, letting a test wire a fake analyzer entirely in
// memory instead of spawning a real subprocess.
type pipeRWC struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p pipeRWC) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeRWC) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p pipeRWC) Close() error {
	_ = p.r.Close()
	return p.w.Close()
}

func newPipePair() (client, server pipeRWC) {
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	client = pipeRWC{r: s2cR, w: c2sW}
	server = pipeRWC{r: c2sR, w: s2cW}
	return client, server
}

// fakeAnalyzerHandler implements just enough LSP to drive the
// initialize/initialized handshake and answer textDocument/definition by
// echoing the requested position back as the response location's line, so
// a test can verify that concurrent requests get back their own response
// and not another request's (spec invariant: responses correlate to their
// own request id, per jsonrpc2's id bookkeeping).
type fakeAnalyzerHandler struct{}

func (fakeAnalyzerHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "initialize":
		sendResult(ctx, conn, req.ID, lsp.InitializeResult{})
	case "initialized", "textDocument/didOpen", "textDocument/didClose", "exit":
		// notifications, nothing to reply
	case "shutdown":
		sendResult(ctx, conn, req.ID, nil)
	case "textDocument/definition":
		var params lsp.TextDocumentPositionParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			sendError(ctx, conn, req.ID, err)
			return
		}
		locs := []lsp.Location{{
			URI: params.TextDocument.URI,
			Range: lsp.Range{
				Start: lsp.Position{Line: params.Position.Line, Character: params.Position.Character},
				End:   lsp.Position{Line: params.Position.Line, Character: params.Position.Character + 1},
			},
		}}
		sendResult(ctx, conn, req.ID, locs)
	default:
		sendError(ctx, conn, req.ID, fmt.Errorf("method not found: %s", req.Method))
	}
}

func sendResult(ctx context.Context, conn *jsonrpc2.Conn, id jsonrpc2.ID, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		sendError(ctx, conn, id, err)
		return
	}
	rm := json.RawMessage(raw)
	conn.SendResponse(ctx, &jsonrpc2.Response{ID: id, Result: &rm})
}

func sendError(ctx context.Context, conn *jsonrpc2.Conn, id jsonrpc2.ID, err error) {
	conn.SendResponse(ctx, &jsonrpc2.Response{
		ID:    id,
		Error: &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()},
	})
}

func startFakeSession(t *testing.T) *AnalyzerSession {
	t.Helper()
	client, server := newPipePair()

	serverStream := jsonrpc2.NewBufferedStream(server, jsonrpc2.VSCodeObjectCodec{})
	jsonrpc2.NewConn(context.Background(), serverStream, jsonrpc2.AsyncHandler(fakeAnalyzerHandler{}))

	def := langtag.Definition{
		Tag:                     "go",
		WorkspaceFolderStrategy: langtag.StrategySingleRoot,
		Command:                 "gopls",
	}
	s, err := newSession(context.Background(), "go", def, t.TempDir(), client)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	return s
}

func TestSessionHandshakeReachesReady(t *testing.T) {
	s := startFakeSession(t)
	defer s.Shutdown(context.Background())

	if got := s.State(); got != StateReady {
		t.Fatalf("state = %v, want Ready", got)
	}
}

func TestSessionRejectsRequestsBeforeOpen(t *testing.T) {
	s := startFakeSession(t)
	defer s.Shutdown(context.Background())

	_, err := s.Definition(context.Background(), "main.go", protocol.Position{Line: 0, Character: 0})
	if err == nil {
		t.Fatal("expected error for unopened document")
	}
}

// TestSessionConcurrentRequestsCorrelate drives 100 concurrent
// textDocument/definition calls, each for a distinct line number, and
// checks that every response carries back its own request's line number
// rather than some other in-flight request's — the pending-request
// bookkeeping spec §4.B describes, here provided by jsonrpc2.Conn.Call.
func TestSessionConcurrentRequestsCorrelate(t *testing.T) {
	s := startFakeSession(t)
	defer s.Shutdown(context.Background())

	ctx := context.Background()
	if err := s.DidOpen(ctx, "main.go", "package main\n"); err != nil {
		t.Fatalf("DidOpen: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			locs, err := s.Definition(ctx, "main.go", protocol.Position{Line: line, Character: 0})
			if err != nil {
				errs[line] = err
				return
			}
			if len(locs) != 1 || locs[0].Range.Start.Line != line {
				errs[line] = fmt.Errorf("line %d: got %+v", line, locs)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for concurrent requests")
	}

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: %v", i, err)
		}
	}
}

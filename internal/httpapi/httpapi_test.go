package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/lsproxy-go/lsproxy/internal/analyzer"
	"github.com/lsproxy-go/lsproxy/internal/config"
	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/manager"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
	"github.com/lsproxy-go/lsproxy/internal/workspace"
)

// fakeClient is a minimal analyzer.Client whose Definition echoes back a
// synthetic location derived from the request, mirroring
// internal/manager's own test double so the façade can be exercised
// without a real analyzer subprocess.
type fakeClient struct{ tag langtag.Tag }

func (c *fakeClient) Definition(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	return []protocol.Location{{
		URI:   lsp.DocumentURI("file://" + path),
		Range: protocol.Range{Start: pos, End: protocol.Position{Line: pos.Line, Character: pos.Character + 1}},
	}}, nil
}
func (c *fakeClient) References(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	return c.Definition(ctx, path, pos)
}
func (c *fakeClient) DocumentSymbol(ctx context.Context, path string) ([]protocol.Symbol, error) {
	return nil, gwerrors.New(gwerrors.KindNotImplemented, "no outline support")
}
func (c *fakeClient) DidOpen(ctx context.Context, path, content string) error  { return nil }
func (c *fakeClient) DidClose(ctx context.Context, path string) error         { return nil }
func (c *fakeClient) Shutdown(ctx context.Context) error                     { return nil }

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	root := t.TempDir()
	content := "package main\n\nfunc Greet() {\n}\n"
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	registry, err := langtag.Load()
	if err != nil {
		t.Fatal(err)
	}
	docs, err := workspace.NewDocuments(root)
	if err != nil {
		t.Fatal(err)
	}

	spawn := func(ctx context.Context, tag langtag.Tag, def langtag.Definition, root string, extraArgs []string) (analyzer.Client, error) {
		return &fakeClient{tag: tag}, nil
	}
	mgr := manager.New(config.Config{}, registry, root, docs, spawn)
	srv := New(mgr, root, false, "", nil)
	return srv, func() { docs.Close() }
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListFiles(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/workspace/list-files", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Files) != 1 || resp.Files[0] != "main.go" {
		t.Fatalf("got %+v", resp.Files)
	}
}

func TestReadSourceCodeWithRange(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	body := readSourceCodeRequest{
		Path:  "main.go",
		Range: &protocol.Range{Start: protocol.Position{Line: 0}, End: protocol.Position{Line: 1}},
	}
	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/workspace/read-source-code", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := "package main\n"
	if resp.Content != want {
		t.Fatalf("got %q, want %q", resp.Content, want)
	}
}

func TestReadSourceCodeFileNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/workspace/read-source-code", readSourceCodeRequest{Path: "missing.go"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", rec.Code, rec.Body.String())
	}
}

func TestFindDefinitionReturnsSingleDefinition(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	body := findDefinitionRequest{Position: protocol.FilePosition{Path: "main.go", Position: protocol.Position{Line: 2, Character: 5}}}
	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/symbol/find-definition", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Definitions []definitionDTO `json:"definitions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Definitions) != 1 {
		t.Fatalf("got %+v", resp.Definitions)
	}
}

func TestAuthToggleRejectsMissingToken(t *testing.T) {
	root := t.TempDir()
	registry, err := langtag.Load()
	if err != nil {
		t.Fatal(err)
	}
	docs, err := workspace.NewDocuments(root)
	if err != nil {
		t.Fatal(err)
	}
	defer docs.Close()
	mgr := manager.New(config.Config{}, registry, root, docs, func(ctx context.Context, tag langtag.Tag, def langtag.Definition, root string, extraArgs []string) (analyzer.Client, error) {
		return &fakeClient{tag: tag}, nil
	})
	srv := New(mgr, root, true, "secret-token", nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/workspace/list-files", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDefinitionsInFileMissingQueryParam(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/symbol/definitions-in-file", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

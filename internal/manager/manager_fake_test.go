package manager

import (
	"context"
	"fmt"
	"sync"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
)

// fakeClient is a minimal in-memory analyzer.Client stand-in: Definition
// always resolves to a single synthetic location derived from the
// requested position, so tests can verify a response corresponds to its
// own request without a real analyzer.
type fakeClient struct {
	tag langtag.Tag

	mu        sync.Mutex
	opened    map[string]bool
	failNames map[string]bool // "line:character" positions whose Definition should error
}

func newFakeClient(tag langtag.Tag) *fakeClient {
	return &fakeClient{tag: tag, opened: make(map[string]bool), failNames: make(map[string]bool)}
}

func (c *fakeClient) Definition(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	if c.failNames[fmt.Sprintf("%d:%d", pos.Line, pos.Character)] {
		return nil, gwerrors.New(gwerrors.KindTransportFailure, "simulated failure")
	}
	return []protocol.Location{{
		URI: lsp.DocumentURI("file://" + path),
		Range: protocol.Range{
			Start: pos,
			End:   protocol.Position{Line: pos.Line, Character: pos.Character + 1},
		},
	}}, nil
}

func (c *fakeClient) References(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	return c.Definition(ctx, path, pos)
}

func (c *fakeClient) DocumentSymbol(ctx context.Context, path string) ([]protocol.Symbol, error) {
	return nil, gwerrors.New(gwerrors.KindNotImplemented, "fake analyzer has no outline support")
}

func (c *fakeClient) DidOpen(ctx context.Context, path, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened[path] = true
	return nil
}

func (c *fakeClient) DidClose(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.opened, path)
	return nil
}

func (c *fakeClient) Shutdown(ctx context.Context) error { return nil }

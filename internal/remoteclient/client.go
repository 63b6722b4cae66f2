// Package remoteclient implements analyzer.Client over HTTP against a
// containerized wrapper process (spec §4.J), so the manager can treat a
// containerized analyzer exactly like internal/transport's in-process
// one. The wrapper speaks the same `/symbol/*`, `/workspace/*` path shape
// as the gateway's own façade (spec §6 "Container wrapper API"), since it
// has the workspace bind-mounted at the same relative layout and can
// answer directly rather than round-tripping back through the gateway.
//
// Request tracing follows vfsutil/zip.go's fetch pattern: one opentracing
// span per outbound call, tagged with the URL and failure state.
package remoteclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/gregjones/httpcache"
	"github.com/pkg/errors"

	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
)

// defaultTimeout is the HTTP-to-container call budget spec §5 names: 30s.
const defaultTimeout = 30 * time.Second

// RemoteClient talks to one container wrapper's HTTP API. It implements
// analyzer.Client.
type RemoteClient struct {
	Endpoint string // http://host:port, no trailing slash
	httpc    *http.Client
}

// New builds a RemoteClient against endpoint, wrapping the transport in an
// in-memory cache so repeated idempotent GETs (definitions-in-file, the
// only GET this client issues) between invalidating writes don't
// round-trip to the container every time.
func New(endpoint string) *RemoteClient {
	cache := httpcache.NewMemoryCacheTransport()
	return &RemoteClient{
		Endpoint: endpoint,
		httpc:    &http.Client{Transport: cache, Timeout: defaultTimeout},
	}
}

func (c *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "remoteclient "+path)
	ext.Component.Set(span, "remoteclient")
	span.SetTag("url", c.Endpoint+path)
	var rerr error
	defer func() {
		if rerr != nil {
			ext.Error.Set(span, true)
			span.SetTag("err", rerr.Error())
		}
		span.Finish()
	}()

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			rerr = errors.Wrap(err, "encoding request body")
			return gwerrors.Wrap(gwerrors.KindTransportFailure, rerr, path)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint+path, reqBody)
	if err != nil {
		rerr = err
		return gwerrors.Wrap(gwerrors.KindTransportFailure, err, path)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		rerr = err
		return gwerrors.Wrap(gwerrors.KindTransportFailure, err, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		rerr = fmt.Errorf("remote analyzer: %s returned 404", path)
		return gwerrors.New(gwerrors.KindFileNotFound, rerr.Error())
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		rerr = fmt.Errorf("remote analyzer: %s returned %d: %s", path, resp.StatusCode, string(data))
		return gwerrors.New(gwerrors.KindTransportFailure, rerr.Error())
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		rerr = err
		return gwerrors.Wrap(gwerrors.KindTransportFailure, err, "decoding response from "+path)
	}
	return nil
}

type findDefinitionRequest struct {
	Position protocol.FilePosition `json:"position"`
}

type findDefinitionResponse struct {
	Definitions []protocol.Location `json:"definitions"`
}

// Definition issues POST /symbol/find-definition against the container.
func (c *RemoteClient) Definition(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	var resp findDefinitionResponse
	req := findDefinitionRequest{Position: protocol.FilePosition{Path: path, Position: pos}}
	if err := c.do(ctx, http.MethodPost, "/symbol/find-definition", req, &resp); err != nil {
		return nil, err
	}
	return resp.Definitions, nil
}

type findReferencesRequest struct {
	IdentifierPosition protocol.FilePosition `json:"identifier_position"`
}

type findReferencesResponse struct {
	References []protocol.Location `json:"references"`
}

// References issues POST /symbol/find-references against the container.
func (c *RemoteClient) References(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	var resp findReferencesResponse
	req := findReferencesRequest{IdentifierPosition: protocol.FilePosition{Path: path, Position: pos}}
	if err := c.do(ctx, http.MethodPost, "/symbol/find-references", req, &resp); err != nil {
		return nil, err
	}
	return resp.References, nil
}

// DocumentSymbol issues GET /symbol/definitions-in-file?file_path=... .
func (c *RemoteClient) DocumentSymbol(ctx context.Context, path string) ([]protocol.Symbol, error) {
	var syms []protocol.Symbol
	q := "?file_path=" + url.QueryEscape(path)
	if err := c.do(ctx, http.MethodGet, "/symbol/definitions-in-file"+q, nil, &syms); err != nil {
		return nil, err
	}
	return syms, nil
}

// DidOpen is a no-op: the container wrapper reads straight from its
// bind-mounted copy of the workspace, so there is no document-open
// notification to send, unlike the stdio-framed in-process analyzer.
func (c *RemoteClient) DidOpen(ctx context.Context, path, content string) error { return nil }

// DidClose is a no-op for the same reason as DidOpen.
func (c *RemoteClient) DidClose(ctx context.Context, path string) error { return nil }

// Shutdown is a no-op: the container's own lifecycle is owned by
// internal/orchestrator, not by this client.
func (c *RemoteClient) Shutdown(ctx context.Context) error { return nil }

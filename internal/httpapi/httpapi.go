// Package httpapi implements the gateway's HTTP façade (spec §4.K,
// §6): a thin adapter that parses typed JSON request bodies, dispatches
// to internal/manager, maps errors to status codes, and serializes
// responses. It follows debugserver's plain net/http.ServeMux idiom —
// neither the teacher nor the rest of the pack reaches for a router
// framework, so this module doesn't either — and layers in the
// teacher's tracing (opentracing-go) and metrics (prometheus) the same
// way debugserver and main.go already do.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/manager"
	"github.com/lsproxy-go/lsproxy/internal/metrics"
	"github.com/lsproxy-go/lsproxy/internal/pathutil"
	"github.com/lsproxy-go/lsproxy/internal/protocol"
	"github.com/lsproxy-go/lsproxy/internal/workspace"
)

// Server mounts the /v1 API over one workspace's Manager.
type Server struct {
	mgr       *manager.Manager
	root      string
	useAuth   bool
	authToken string
	metrics   *metrics.Metrics
}

// New builds a Server. root is the workspace's absolute path, used only
// to translate analyzer-returned file:// locations back to
// workspace-relative paths, for the sort required by invariant 6 and for
// reading a definition's source when include_source_code is set.
func New(mgr *manager.Manager, root string, useAuth bool, authToken string, m *metrics.Metrics) *Server {
	return &Server{mgr: mgr, root: root, useAuth: useAuth, authToken: authToken, metrics: m}
}

// Handler returns the façade's mux, ready to be mounted under /v1 (or
// served standalone).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/system/health", s.wrap("system.health", s.handleHealth))
	mux.HandleFunc("/v1/workspace/list-files", s.wrap("workspace.list-files", s.handleListFiles))
	mux.HandleFunc("/v1/workspace/read-source-code", s.wrap("workspace.read-source-code", s.handleReadSourceCode))
	mux.HandleFunc("/v1/symbol/find-definition", s.wrap("symbol.find-definition", s.handleFindDefinition))
	mux.HandleFunc("/v1/symbol/find-references", s.wrap("symbol.find-references", s.handleFindReferences))
	mux.HandleFunc("/v1/symbol/definitions-in-file", s.wrap("symbol.definitions-in-file", s.handleDefinitionsInFile))
	mux.HandleFunc("/v1/symbol/find-referenced-symbols", s.wrap("symbol.find-referenced-symbols", s.handleFindReferencedSymbols))
	mux.HandleFunc("/v1/symbol/find-identifier", s.wrap("symbol.find-identifier", s.handleFindIdentifier))
	return mux
}

// wrap applies the auth toggle, a request-id/tracing span, and metrics to
// every route, mirroring main.go's openGauge-per-process pattern
// generalized to per-route counters.
func (s *Server) wrap(route string, h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.useAuth && !s.authorized(r) {
			writeError(w, gwerrors.New(gwerrors.KindValidation, "missing or invalid bearer token"), http.StatusUnauthorized)
			return
		}

		reqID := uuid.New().String()
		span, ctx := opentracing.StartSpanFromContext(r.Context(), "httpapi "+route)
		ext.Component.Set(span, "httpapi")
		span.SetTag("request_id", reqID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(route).Inc()
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.metrics != nil {
			s.metrics.ObserveLatency(time.Since(start))
			if rec.status >= 400 {
				s.metrics.RequestErrors.WithLabelValues(route, statusKind(rec.status)).Inc()
			}
		}
		span.Finish()
	}
}

func (s *Server) authorized(r *http.Request) bool {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	return strings.HasPrefix(h, prefix) && h[len(prefix):] == s.authToken
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusKind(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status >= 400 && status < 500:
		return "validation"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a gateway error to its §7 status code and a
// single-line diagnostic body. When status is already known (e.g. an
// auth failure that predates any gwerrors.Error), it's passed through.
func writeError(w http.ResponseWriter, err error, status int) {
	if status == 0 {
		status = statusForKind(gwerrors.KindOf(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusForKind maps a §7 error kind to an HTTP status: 404 for
// file-not-found, 400 for client-identifiable mistakes, 500 for
// everything else (analyzer, transport, orchestrator failures).
func statusForKind(k gwerrors.Kind) int {
	switch k {
	case gwerrors.KindFileNotFound:
		return http.StatusNotFound
	case gwerrors.KindUnsupportedFileType, gwerrors.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return gwerrors.Wrap(gwerrors.KindValidation, err, "decoding request body")
	}
	return nil
}

// requirePathExists implements the §4.G pre-condition every path-bearing
// operation must check before dispatching.
func (s *Server) requirePathExists(ctx context.Context, relPath string) error {
	ok, err := s.mgr.FileExists(ctx, relPath)
	if err != nil {
		return err
	}
	if !ok {
		return gwerrors.Newf(gwerrors.KindFileNotFound, "no such file: %s", relPath)
	}
	return nil
}

// relPathOf translates an analyzer-returned location's file:// URI back
// to a workspace-relative path for sorting (invariant 6); locations the
// gateway can't resolve back under the root sort last, by their raw URI.
func (s *Server) relPathOf(loc protocol.Location) string {
	abs := pathutil.FromURI(string(loc.URI))
	rel, err := pathutil.ToRel(s.root, abs)
	if err != nil {
		return string(loc.URI)
	}
	return rel
}

// sortLocations orders locs by (relative_path, start.line,
// start.character), invariant 6.
func (s *Server) sortLocations(locs []protocol.Location) {
	paths := make([]string, len(locs))
	for i, l := range locs {
		paths[i] = s.relPathOf(l)
	}
	sort.Slice(locs, func(i, j int) bool {
		return protocol.LessLocation(paths[i], paths[j], locs[i].Range, locs[j].Range)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	languages, err := s.mgr.DetectLanguages()
	if err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status    string          `json:"status"`
		Languages map[string]bool `json:"languages"`
	}{Status: "ok", Languages: languages})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.mgr.ListFiles(nil, nil, true, workspace.KindFile)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	files := make([]string, len(entries))
	for i, e := range entries {
		files[i] = e.Path
	}
	sort.Strings(files)
	writeJSON(w, http.StatusOK, struct {
		Files []string `json:"files"`
	}{Files: files})
}

type readSourceCodeRequest struct {
	Path  string          `json:"path"`
	Range *protocol.Range `json:"range,omitempty"`
}

func (s *Server) handleReadSourceCode(w http.ResponseWriter, r *http.Request) {
	var req readSourceCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, 0)
		return
	}
	if err := s.requirePathExists(r.Context(), req.Path); err != nil {
		writeError(w, err, 0)
		return
	}
	content, err := s.mgr.ReadSourceCode(r.Context(), req.Path)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	if req.Range != nil {
		content = sliceLines(content, req.Range.Start.Line, req.Range.End.Line)
	}
	writeJSON(w, http.StatusOK, struct {
		Content string `json:"content"`
	}{Content: content})
}

// sliceLines returns lines [start, end] of content (inclusive), joined
// by "\n", the exact contract invariant 7 names.
func sliceLines(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	if start > end || start >= len(lines) {
		return ""
	}
	return strings.Join(lines[start:end+1], "\n")
}

type findDefinitionRequest struct {
	Position           protocol.FilePosition `json:"position"`
	IncludeSourceCode  bool                  `json:"include_source_code,omitempty"`
	IncludeRawResponse bool                  `json:"include_raw_response,omitempty"`
}

type definitionDTO struct {
	protocol.Location
	SourceCode string `json:"source_code,omitempty"`
}

func (s *Server) handleFindDefinition(w http.ResponseWriter, r *http.Request) {
	var req findDefinitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, 0)
		return
	}
	if err := s.requirePathExists(r.Context(), req.Position.Path); err != nil {
		writeError(w, err, 0)
		return
	}
	locs, err := s.mgr.FindDefinition(r.Context(), req.Position.Path, req.Position.Position)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	s.sortLocations(locs)

	defs := make([]definitionDTO, len(locs))
	for i, loc := range locs {
		defs[i] = definitionDTO{Location: loc}
		if req.IncludeSourceCode {
			if content, err := s.mgr.ReadSourceCode(r.Context(), s.relPathOf(loc)); err == nil {
				defs[i].SourceCode = sliceLines(content, loc.Range.Start.Line, loc.Range.End.Line)
			}
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Definitions []definitionDTO `json:"definitions"`
	}{Definitions: defs})
}

type findReferencesRequest struct {
	IdentifierPosition protocol.FilePosition `json:"identifier_position"`
	ContextLines        int                   `json:"context_lines,omitempty"`
}

func (s *Server) handleFindReferences(w http.ResponseWriter, r *http.Request) {
	var req findReferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, 0)
		return
	}
	if err := s.requirePathExists(r.Context(), req.IdentifierPosition.Path); err != nil {
		writeError(w, err, 0)
		return
	}
	locs, err := s.mgr.FindReferences(r.Context(), req.IdentifierPosition.Path, req.IdentifierPosition.Position)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	s.sortLocations(locs)
	writeJSON(w, http.StatusOK, struct {
		References []protocol.Location `json:"references"`
	}{References: locs})
}

func (s *Server) handleDefinitionsInFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("file_path")
	if path == "" {
		writeError(w, gwerrors.New(gwerrors.KindValidation, "file_path is required"), 0)
		return
	}
	if err := s.requirePathExists(r.Context(), path); err != nil {
		writeError(w, err, 0)
		return
	}
	syms, err := s.mgr.DefinitionsInFile(r.Context(), path)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, syms)
}

type findReferencedSymbolsRequest struct {
	IdentifierPosition protocol.FilePosition `json:"identifier_position"`
	FullScan            bool                  `json:"full_scan,omitempty"`
}

type referencedSymbolDTO struct {
	Reference   protocol.Reference  `json:"reference"`
	Definitions []protocol.Location `json:"definitions"`
}

func (s *Server) handleFindReferencedSymbols(w http.ResponseWriter, r *http.Request) {
	var req findReferencedSymbolsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, 0)
		return
	}
	if err := s.requirePathExists(r.Context(), req.IdentifierPosition.Path); err != nil {
		writeError(w, err, 0)
		return
	}
	results, err := s.mgr.FindReferencedSymbols(r.Context(), req.IdentifierPosition.Path, req.IdentifierPosition.Position, req.FullScan)

	// The composite query's partial-failure policy (spec §4.H) only
	// fails the whole request when nothing could be resolved; a
	// best-effort batch with some successes still reports 200 with
	// whatever pairs resolved, dropping the failed placeholders.
	symbols := make([]referencedSymbolDTO, 0, len(results))
	for _, res := range results {
		if len(res.Definitions) == 0 {
			continue
		}
		symbols = append(symbols, referencedSymbolDTO{Reference: res.Reference, Definitions: res.Definitions})
	}
	if err != nil && len(symbols) == 0 {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Symbols []referencedSymbolDTO `json:"symbols"`
	}{Symbols: symbols})
}

type findIdentifierRequest struct {
	Path     string            `json:"path"`
	Name     string            `json:"name"`
	Position *protocol.Position `json:"position,omitempty"`
}

func (s *Server) handleFindIdentifier(w http.ResponseWriter, r *http.Request) {
	var req findIdentifierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, 0)
		return
	}
	if req.Name == "" {
		writeError(w, gwerrors.New(gwerrors.KindValidation, "name is required"), 0)
		return
	}
	if err := s.requirePathExists(r.Context(), req.Path); err != nil {
		writeError(w, err, 0)
		return
	}
	syms, err := s.mgr.FindIdentifier(r.Context(), req.Path, req.Name, req.Position)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Identifiers []protocol.Symbol `json:"identifiers"`
	}{Identifiers: syms})
}

package manager

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/neelance/parallel"

	"github.com/lsproxy-go/lsproxy/internal/protocol"
	"github.com/lsproxy-go/lsproxy/internal/symbolscan"
)

// maxFanOut bounds how many definition lookups FindReferencedSymbols runs
// concurrently, mirroring langserver/symbol.go's config.MaxParallelism
// use of neelance/parallel to cap fan-out against a single analyzer
// connection.
const maxFanOut = 8

// ReferencedSymbol pairs one syntactic reference occurrence with
// whatever definitions the analyzer resolved for it.
type ReferencedSymbol struct {
	Reference   protocol.Reference
	Definitions []protocol.Location
}

// FindReferencedSymbols implements the composite query (spec §4.H): it
// finds the symbol at pos, syntactically scans for every other
// occurrence of that name, and resolves each occurrence's definition
// through the analyzer, fanning the lookups out with bounded
// concurrency and aggregating partial failures instead of failing the
// whole request on one bad occurrence.
//
// When fullScan is false, occurrences are restricted to the range of the
// symbol enclosing pos (spec §4.H: "only references inside the enclosing
// symbol's range"), found via symbolscan.EnclosingSymbol and filtered
// with protocol.Contains. When fullScan is true, every occurrence in the
// file is a candidate, resolved to file-local scope rather than
// workspace-global (DESIGN.md Open Question (a)): scanning every file of
// the language across the workspace for one symbol lookup is not worth
// the latency it would add to a request this interactive.
func (m *Manager) FindReferencedSymbols(ctx context.Context, relPath string, pos protocol.Position, fullScan bool) ([]ReferencedSymbol, error) {
	sym, ok, err := m.GetSymbolFromPosition(ctx, relPath, pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	tag, client, err := m.ensureOpen(ctx, relPath)
	if err != nil {
		return nil, err
	}
	content, err := m.docs.Get(ctx, relPath)
	if err != nil {
		return nil, err
	}

	var scope *protocol.Range
	if !fullScan {
		if enclosing, found := symbolscan.EnclosingSymbol(tag, content, pos); found {
			r := enclosing.Range
			scope = &r
		}
	}

	var occurrences []protocol.Reference
	for _, ref := range symbolscan.ScanReferences(tag, content) {
		if ref.Name != sym.Name {
			continue
		}
		if scope != nil && !protocol.Contains(*scope, ref.Range.Start) {
			continue
		}
		occurrences = append(occurrences, ref)
	}
	if len(occurrences) == 0 {
		return nil, nil
	}

	results := make([]ReferencedSymbol, len(occurrences))
	var mu sync.Mutex
	var errs *multierror.Error

	par := parallel.NewRun(maxFanOut)
	for i, ref := range occurrences {
		if ctx.Err() != nil {
			break
		}
		par.Acquire()
		go func(i int, ref protocol.Reference) {
			defer par.Release()
			locs, err := client.Definition(ctx, relPath, ref.Range.Start)
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
				return
			}
			results[i] = ReferencedSymbol{Reference: ref, Definitions: locs}
		}(i, ref)
	}
	_ = par.Wait()

	return results, errs.ErrorOrNil()
}

// Package analyzer defines the capability set shared by every kind of
// per-language analyzer the manager can talk to — an in-process child
// process (internal/transport) or a containerized wrapper reached over
// HTTP (internal/remoteclient). Per spec.md's design note on "polymorphism
// over analyzer variants", this is a single interface, not a class
// hierarchy: language-specific behavior is configuration plus the
// langtag.Definition hook, not a subtype.
package analyzer

import (
	"context"

	"github.com/lsproxy-go/lsproxy/internal/protocol"
)

// Client is the capability set an analyzer session exposes to the manager.
type Client interface {
	// Definition resolves go-to-definition at a position in an
	// already-open (or lazily opened) document.
	Definition(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error)
	// References resolves find-references, including the declaration
	// site (spec §4.G).
	References(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error)
	// DocumentSymbol returns the analyzer's own symbol outline for a
	// document, where available; NotImplemented otherwise.
	DocumentSymbol(ctx context.Context, path string) ([]protocol.Symbol, error)
	// DidOpen notifies the analyzer a document is open with the given
	// text, performing the lazy-open-before-request rule (spec §4.C).
	DidOpen(ctx context.Context, path, content string) error
	// DidClose notifies the analyzer a document was closed.
	DidClose(ctx context.Context, path string) error
	// Shutdown terminates the session (spec §4.C).
	Shutdown(ctx context.Context) error
}

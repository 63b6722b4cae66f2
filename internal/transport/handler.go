package transport

import (
	"context"
	"log"

	"github.com/sourcegraph/jsonrpc2"
)

// passiveHandler answers inbound, analyzer-initiated requests and
// notifications. The gateway never drives an analyzer's UI, so it has
// nothing useful to say to window/showMessage, workspace/configuration,
// or textDocument/publishDiagnostics; it logs them and, for requests
// that expect a response, returns MethodNotFound rather than hanging the
// analyzer's connection.
type passiveHandler struct {
	tag string
}

func newPassiveHandler(tag string) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError((&passiveHandler{tag: tag}).handle)
}

func (h *passiveHandler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	if req.Notif {
		log.Printf("transport[%s]: notification %s", h.tag, req.Method)
		return nil, nil
	}
	log.Printf("transport[%s]: unhandled request %s", h.tag, req.Method)
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: "lsproxy does not handle analyzer-initiated requests: " + req.Method,
	}
}

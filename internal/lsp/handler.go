// Package lsp implements the IRL language server: parse and verify the
// open document on every change, publishing diagnostics to the client.
package lsp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"irl/internal/diagnostics"
	"irl/internal/ir"
	"irl/internal/parser"
)

// Handler implements the LSP server handlers for IRL.
type Handler struct {
	mu      sync.RWMutex
	content map[string]string
	progs   map[string]*parser.Program
}

// NewHandler creates a fresh Handler with empty document state.
func NewHandler() *Handler {
	return &Handler{
		content: make(map[string]string),
		progs:   make(map[string]*parser.Program),
	}
}

func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	return nil
}

func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	h.refresh(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

// TextDocumentDidChange re-reads the document from disk and reverifies
// it. The text carried by the change event is not used, so edits that
// exist only in the editor's unsaved buffer are not seen until saved.
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	h.refresh(ctx, params.TextDocument.URI, string(content))
	return nil
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.content, path)
	delete(h.progs, path)
	h.mu.Unlock()
	return nil
}

// refresh reparses+reverifies the document and publishes fresh
// diagnostics (empty slice clears stale ones on the client side).
func (h *Handler) refresh(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	path, err := uriToPath(uri)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.content[path] = text
	h.mu.Unlock()

	prog, diag := parser.ParseSource(path, text)
	var diags []protocol.Diagnostic
	if diag != nil {
		diags = append(diags, toProtocol(diag, text))
	} else {
		for _, fn := range prog.Functions {
			if d := ir.Verify(fn); d != nil {
				diags = append(diags, toProtocol(d, text))
			}
		}
		h.mu.Lock()
		h.progs[path] = prog
		h.mu.Unlock()
	}

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

func uriToPath(rawURI protocol.DocumentUri) (string, error) {
	u, err := url.Parse(string(rawURI))
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}
	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func ptrBool(b bool) *bool                                       { return &b }
func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }

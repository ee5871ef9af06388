// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the sync engine to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/kadisync/internal/index"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/syncengine"
	"github.com/starford/kadisync/internal/vault"
)

const contractURI = "kadi://frontmatter-contract"

// Server wraps the MCP server with the sync tools.
type Server struct {
	mcp    *server.MCPServer
	engine *syncengine.Engine
	vault  *vault.Vault
	ledger index.Ledger
}

// New creates a new MCP server with all sync tools registered.
func New(engine *syncengine.Engine, v *vault.Vault, ledger index.Ledger) *Server {
	s := &Server{engine: engine, vault: v, ledger: ledger}

	s.mcp = server.NewMCPServer(
		"kadisync",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_note",
		mcp.WithDescription("Create or update the Kadi4Mat record of a note and write the record id "+
			"back into the note header. Omitted fields keep the values seeded from the header "+
			"and the settings. Read the contract first via get_frontmatter_contract or the "+
			contractURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note (e.g. folder/note.md)")),
		mcp.WithString("title", mcp.Description("Record title")),
		mcp.WithString("state", mcp.Enum(models.RecordStates...), mcp.Description("Record state")),
		mcp.WithString("visibility", mcp.Enum(models.RecordVisibilities...), mcp.Description("Record visibility")),
		mcp.WithString("license", mcp.Description("License identifier, see list_licenses")),
	), s.syncNote)

	s.mcp.AddTool(mcp.NewTool("preview_note",
		mcp.WithDescription("Show the record a sync of the note would send, without sending it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note")),
	), s.previewNote)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report whether a note is synced, syncing or failed, and its record fields."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note")),
	), s.syncStatus)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the notes of the vault with their sync status."),
		mcp.WithBoolean("synced", mcp.Description("Only synced (true) or only unsynced (false) notes; omit for all")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes to return (default: 100)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("test_connection",
		mcp.WithDescription("Check the configured Kadi4Mat host and token."),
	), s.testConnection)

	s.mcp.AddTool(mcp.NewTool("list_licenses",
		mcp.WithDescription("Search the licenses a record may carry."),
		mcp.WithString("query", mcp.Description("Words matched against license id and name; empty lists all")),
	), s.listLicenses)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_contract",
		mcp.WithDescription("Returns the header fields the sync reads and writes. "+
			"Call this before editing a note's header for Kadi4Mat."),
	), s.getFrontmatterContract)

	// Resource: frontmatter contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Frontmatter Contract",
			mcp.WithResourceDescription("Header fields that control the Kadi4Mat record of a note."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError renders err the way the notices do: the remote message when the
// service answered, the error text otherwise.
func toolError(err error) *mcp.CallToolResult {
	var kerr *kadi.Error
	if errors.As(err, &kerr) && kerr.Message != "" {
		return mcp.NewToolResultError(fmt.Sprintf("Sync failed: %s (status %d)", kerr.Message, kerr.StatusCode))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func optionalString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

func (s *Server) note(req mcp.CallToolRequest) (models.Note, *mcp.CallToolResult) {
	path, err := req.RequireString("path")
	if err != nil {
		return models.Note{}, mcp.NewToolResultError(err.Error())
	}
	note, err := s.vault.Note(path)
	if err != nil {
		return models.Note{}, mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	}
	return note, nil
}

func (s *Server) syncNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, errResult := s.note(req)
	if errResult != nil {
		return errResult, nil
	}
	confirmer := syncengine.AutoConfirmer{Overrides: syncengine.Confirmation{
		Title:      optionalString(req, "title"),
		State:      optionalString(req, "state"),
		Visibility: optionalString(req, "visibility"),
		License:    optionalString(req, "license"),
	}}
	res, err := s.engine.SyncNote(ctx, note, confirmer)
	if err != nil {
		return toolError(err), nil
	}

	out := struct {
		*syncengine.Result
		URL string `json:"url,omitempty"`
	}{Result: res}
	if u, err := s.engine.RecordURL(ctx, note); err == nil {
		out.URL = u
	}
	return jsonResult(out)
}

func (s *Server) previewNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, errResult := s.note(req)
	if errResult != nil {
		return errResult, nil
	}
	p, err := s.engine.Preview(ctx, note)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(p)
}

func (s *Server) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, errResult := s.note(req)
	if errResult != nil {
		return errResult, nil
	}
	ns, err := s.engine.State(ctx, note)
	if err != nil {
		return toolError(err), nil
	}
	text := syncengine.StatusLine(ns)
	if ns.Status.IsSynced() {
		text += "\n" + syncengine.FormatStatus(ns.Status)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var f index.ListFilter
	if synced, err := req.RequireBool("synced"); err == nil {
		f.Synced = &synced
	}
	if limit, err := req.RequireFloat("limit"); err == nil {
		f.Limit = int(limit)
	}
	notes, total, err := s.ledger.ListNotes(f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if notes == nil {
		notes = []models.NoteSummary{}
	}
	return jsonResult(map[string]any{"notes": notes, "total": total})
}

func (s *Server) testConnection(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := s.engine.TestConnection(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Connected successfully as " + u.Username()), nil
}

func (s *Server) listLicenses(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	found := kadi.SearchLicenses(optionalString(req, "query"))
	if len(found) == 0 {
		return mcp.NewToolResultText("no licenses found"), nil
	}
	return jsonResult(found)
}

func (s *Server) getFrontmatterContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     FrontmatterContract,
		},
	}, nil
}

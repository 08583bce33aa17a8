package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/yuanying/epubsplit/internal/opf"
	"github.com/yuanying/epubsplit/internal/splitter"
)

const serverVersion = "1.0.0"

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve split_chapter, register_parts and validate_package as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := readLogger(cmd)
			if err != nil {
				return err
			}
			s := newMCPServer(logger)
			logger.Info("serving MCP over stdio")
			if err := server.ServeStdio(s); err != nil {
				return fmt.Errorf("MCP server stopped: %w", err)
			}
			return nil
		},
	}
}

// toolHandlers holds the state shared by the MCP tools.
type toolHandlers struct {
	splitter *splitter.Splitter
}

func newMCPServer(logger *slog.Logger) *server.MCPServer {
	h := &toolHandlers{splitter: splitter.New(splitter.Options{Logger: logger})}

	s := server.NewMCPServer(
		"epubsplit",
		serverVersion,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("split_chapter",
			mcp.WithDescription("Split an XHTML chapter at the boundaries between runs of text and runs of images. Returns the split result as JSON: success, skipped, reason, contents and filenames."),
			mcp.WithString("content",
				mcp.Required(),
				mcp.Description("The chapter document"),
			),
			mcp.WithString("filename",
				mcp.Required(),
				mcp.Description("The chapter file name, e.g. 'Text/chapter1.xhtml'"),
			),
		),
		h.handleSplitChapter,
	)

	s.AddTool(
		mcp.NewTool("register_parts",
			mcp.WithDescription("Register the parts of a split chapter in a package document: manifest items and spine itemrefs are inserted right after the chapter's own. Returns the updated package document."),
			mcp.WithString("package",
				mcp.Required(),
				mcp.Description("The package (OPF) document"),
			),
			mcp.WithString("after_id",
				mcp.Required(),
				mcp.Description("Manifest id of the split chapter"),
			),
			mcp.WithNumber("parts",
				mcp.Required(),
				mcp.Description("Total number of parts, including the original"),
			),
			mcp.WithString("href",
				mcp.Description("Href of the split chapter (default: taken from the manifest)"),
			),
		),
		h.handleRegisterParts,
	)

	s.AddTool(
		mcp.NewTool("validate_package",
			mcp.WithDescription("Check that a package document has package, manifest, spine and metadata elements. Returns a JSON report."),
			mcp.WithString("package",
				mcp.Required(),
				mcp.Description("The package (OPF) document"),
			),
		),
		h.handleValidatePackage,
	)

	return s
}

func (h *toolHandlers) handleSplitChapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	filename := req.GetString("filename", "")
	if filename == "" {
		return mcp.NewToolResultError("filename is required"), nil
	}

	res := h.splitter.Process(content, filename)
	return jsonResult(res)
}

func (h *toolHandlers) handleRegisterParts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	packageDoc := req.GetString("package", "")
	afterID := req.GetString("after_id", "")
	href := req.GetString("href", "")
	parts := req.GetInt("parts", 0)

	if afterID == "" {
		return mcp.NewToolResultError("after_id is required"), nil
	}
	if parts < 2 {
		return mcp.NewToolResultError("parts must be at least 2"), nil
	}

	updated, err := registerParts(packageDoc, afterID, href, parts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error registering parts: %v", err)), nil
	}
	return mcp.NewToolResultText(updated), nil
}

func (h *toolHandlers) handleValidatePackage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := opf.ValidateStructure(req.GetString("package", ""))
	return jsonResult(report)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

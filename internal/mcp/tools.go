package mcp

import "github.com/mark3labs/mcp-go/mcp"

var validateToolDef = mcp.NewTool("dxt_validate",
	mcp.WithDescription("Validate a DXT bundle: check its structure, then check that every tool the manifest declares is implemented by the Python server source with a consistent description. Returns the report and whether it passed."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .dxt archive")),
	mcp.WithBoolean("strict", mcp.Description("Fail on warnings as well as errors (default: config strict)")),
	mcp.WithString("format",
		mcp.Description("Report format. json returns the structured report; other formats return rendered text"),
		mcp.Enum("json", "text", "yaml", "markdown", "html"),
	),
	mcp.WithString("server_file", mcp.Description("Suffix identifying the server source (default: mcp_server.py)")),
	mcp.WithString("on_ambiguous",
		mcp.Description("What to do when several entries match server_file"),
		mcp.Enum("first", "error"),
	),
	mcp.WithBoolean("record", mcp.Description("Store the verdict in the run history (default: config record_history)")),
)

var extractToolDef = mcp.NewTool("dxt_extract",
	mcp.WithDescription("Extract the tool registrations and function signatures from a DXT bundle's server source without comparing them to the manifest."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .dxt archive")),
	mcp.WithString("server_file", mcp.Description("Suffix identifying the server source (default: mcp_server.py)")),
	mcp.WithString("on_ambiguous",
		mcp.Description("What to do when several entries match server_file"),
		mcp.Enum("first", "error"),
	),
)

var historyToolDef = mcp.NewTool("dxt_history",
	mcp.WithDescription("List recorded validation runs, newest first."),
	mcp.WithString("archive", mcp.Description("Only runs of this archive file name")),
	mcp.WithBoolean("passed", mcp.Description("Only passing (true) or failing (false) runs")),
	mcp.WithNumber("limit", mcp.Description("Max results (default: 20, max: 100)")),
	mcp.WithNumber("offset", mcp.Description("Pagination offset")),
)

var showToolDef = mcp.NewTool("dxt_show",
	mcp.WithDescription("Fetch one recorded validation run with its full report."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID from dxt_history")),
)

package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/mcp"
	"github.com/hpungsan/dxtcheck/internal/ops"
	"github.com/hpungsan/dxtcheck/internal/report"
	"github.com/hpungsan/dxtcheck/internal/web"
)

// errValidationFailed exits 1 without a message; the report already says why.
var errValidationFailed = cli.Exit("", 1)

// openDBFunc opens the run history on demand.
type openDBFunc func() (*sql.DB, error)

// newCLIApp creates the CLI application with all commands.
// Running it with an archive and no command validates the archive.
func newCLIApp(cfg *config.Config, openDB openDBFunc) *cli.App {
	app := &cli.App{
		Name:      "dxtcheck",
		Usage:     "Validate that a DXT bundle's server implements the tools its manifest declares",
		UsageText: "dxtcheck [options] <archive>\ndxtcheck <command> [options] [arguments...]",
		Version:   Version,
		Flags:     validateFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("no archive to validate (see dxtcheck --help)"))
			}
			return validateAction(c, cfg, openDB)
		},
		Commands: []*cli.Command{
			validateCmd(cfg, openDB),
			extractCmd(cfg),
			historyCmd(cfg, openDB),
			mcpCmd(cfg, openDB),
			serveCmd(cfg, openDB),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// validateFlags returns the flags shared by the root action and the validate command.
func validateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Report format: text|json|yaml|markdown|html"},
		&cli.BoolFlag{Name: "strict", Usage: "Fail on warnings as well as errors"},
		&cli.StringFlag{Name: "server-file", Usage: "Suffix identifying the server source (default: config server_filename)"},
		&cli.StringFlag{Name: "on-ambiguous", Usage: "When several entries match: first|error (default: config on_ambiguous)"},
		&cli.BoolFlag{Name: "record", Usage: "Store the verdict in ~/.dxtcheck/history.db"},
	}
}

// validateCmd creates the validate command.
func validateCmd(cfg *config.Config, openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a DXT archive (exit 1 on failure)",
		ArgsUsage: "<archive>",
		Flags:     validateFlags(),
		Action: func(c *cli.Context) error {
			return validateAction(c, cfg, openDB)
		},
	}
}

func validateAction(c *cli.Context, cfg *config.Config, openDB openDBFunc) error {
	if c.NArg() != 1 {
		return outputError(errors.NewInvalidRequest("expected exactly one archive path"))
	}

	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return outputError(err)
	}

	input := ops.ValidateInput{
		Path: c.Args().First(),
		SourceOptions: ops.SourceOptions{
			ServerFile:  c.String("server-file"),
			OnAmbiguous: c.String("on-ambiguous"),
		},
	}
	if c.IsSet("strict") {
		strict := c.Bool("strict")
		input.Strict = &strict
	}

	r, err := ops.Validate(c.Context, cfg, input)
	if err != nil {
		return outputError(err)
	}

	record := cfg.RecordHistory
	if c.IsSet("record") {
		record = c.Bool("record")
	}
	if record {
		recordRun(openDB, cfg, r)
	}

	if err := report.Write(os.Stdout, r, format); err != nil {
		return outputError(err)
	}
	if !r.Passed {
		return errValidationFailed
	}
	return nil
}

// recordRun stores r in the history. The verdict stands even if the write fails.
func recordRun(openDB openDBFunc, cfg *config.Config, r *report.Report) {
	database, err := history(openDB)
	if err != nil {
		slog.Warn("run not recorded", "archive", r.Archive, "err", err)
		return
	}
	out, err := ops.Record(database, cfg, r)
	if err != nil {
		slog.Warn("run not recorded", "archive", r.Archive, "err", err)
		return
	}
	slog.Debug("recorded run", "id", out.ID, "trimmed", out.Trimmed)
}

// extractCmd creates the extract command.
func extractCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Print the tool registrations and function signatures found in an archive's server source",
		ArgsUsage: "<archive>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server-file", Usage: "Suffix identifying the server source"},
			&cli.StringFlag{Name: "on-ambiguous", Usage: "When several entries match: first|error"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("expected exactly one archive path"))
			}

			output, err := ops.Extract(c.Context, cfg, ops.ExtractInput{
				Path: c.Args().First(),
				SourceOptions: ops.SourceOptions{
					ServerFile:  c.String("server-file"),
					OnAmbiguous: c.String("on-ambiguous"),
				},
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command group.
func historyCmd(cfg *config.Config, openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect and manage recorded validation runs",
		Subcommands: []*cli.Command{
			historyListCmd(openDB),
			historyShowCmd(openDB),
			historyDeleteCmd(openDB),
			historyPurgeCmd(openDB),
			historyExportCmd(cfg, openDB),
		},
	}
}

// historyListCmd creates the history list command.
func historyListCmd(openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recorded runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "archive", Aliases: []string{"a"}, Usage: "Filter by archive file name"},
			&cli.StringFlag{Name: "status", Usage: "Filter by verdict: passed|failed"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			database, err := history(openDB)
			if err != nil {
				return outputError(err)
			}

			passed, err := parseStatus(c.String("status"))
			if err != nil {
				return outputError(err)
			}

			input := ops.HistoryInput{
				Passed: passed,
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			}
			if archive := c.String("archive"); archive != "" {
				input.Archive = &archive
			}

			output, err := ops.History(database, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyShowCmd creates the history show command.
func historyShowCmd(openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one recorded run",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Render the stored report instead: text|json|yaml|markdown|html"},
		},
		Action: func(c *cli.Context) error {
			database, err := history(openDB)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Show(database, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			if !c.IsSet("format") {
				return outputJSON(output)
			}
			format, err := report.ParseFormat(c.String("format"))
			if err != nil {
				return outputError(err)
			}
			if err := report.Write(os.Stdout, output.Report, format); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// historyDeleteCmd creates the history delete command.
func historyDeleteCmd(openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete one recorded run",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			database, err := history(openDB)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Delete(database, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyPurgeCmd creates the history purge command.
func historyPurgeCmd(openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete recorded runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "archive", Aliases: []string{"a"}, Usage: "Filter by archive file name"},
			&cli.StringFlag{Name: "older-than", Usage: "Only purge runs recorded more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			database, err := history(openDB)
			if err != nil {
				return outputError(err)
			}

			input := ops.PurgeInput{}
			if archive := c.String("archive"); archive != "" {
				input.Archive = &archive
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(database, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyExportCmd creates the history export command.
func historyExportCmd(cfg *config.Config, openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export recorded runs to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.dxtcheck/exports/<archive>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "archive", Aliases: []string{"a"}, Usage: "Filter by archive file name"},
			&cli.StringFlag{Name: "status", Usage: "Filter by verdict: passed|failed"},
		},
		Action: func(c *cli.Context) error {
			database, err := history(openDB)
			if err != nil {
				return outputError(err)
			}

			passed, err := parseStatus(c.String("status"))
			if err != nil {
				return outputError(err)
			}

			input := ops.ExportInput{
				Path:   c.String("path"),
				Passed: passed,
			}
			if archive := c.String("archive"); archive != "" {
				input.Archive = &archive
			}

			output, err := ops.Export(c.Context, database, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(cfg *config.Config, openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the validation tools over MCP stdio",
		Action: func(c *cli.Context) error {
			database, err := history(openDB)
			if err != nil {
				// Validation works without history; the history tools report it unavailable
				slog.Warn("run history unavailable", "err", err)
			}
			return mcp.Run(database, cfg, Version)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(cfg *config.Config, openDB openDBFunc) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse recorded runs in a local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8321, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			database, err := history(openDB)
			if err != nil {
				return outputError(err)
			}

			srv, err := web.NewServer(database, cfg, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(c.Context, srv)
		},
	}
}

// Helper functions

// history opens the run history, or fails when none is configured.
func history(openDB openDBFunc) (*sql.DB, error) {
	if openDB == nil {
		return nil, errors.NewInvalidRequest("run history is not available")
	}
	database, err := openDB()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return database, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.CheckError
	if stderrors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseStatus maps "passed"/"failed" to a verdict filter.
func parseStatus(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "passed", "pass":
		v := true
		return &v, nil
	case "failed", "fail":
		v := false
		return &v, nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("status must be passed or failed, got %q", s))
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}

package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/db"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// baseDir returns ~/.dxtcheck.
func baseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, config.DirName), nil
}

// loadConfig merges ~/.dxtcheck/config.json with the nearest repo config.
func loadConfig(globalDir string) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("could not determine working directory: %w", err)
	}
	cfg, err := config.LoadWithRepo(globalDir, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// historyOpener opens the history database on first use and reuses it afterwards.
func historyOpener(dir string, cfg *config.Config) (func() (*sql.DB, error), func()) {
	var database *sql.DB
	open := func() (*sql.DB, error) {
		if database != nil {
			return database, nil
		}
		d, err := db.Init(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history: %w", err)
		}
		db.ConfigurePool(d, cfg)
		database = d
		return database, nil
	}
	closeFn := func() {
		if database != nil {
			database.Close()
		}
	}
	return open, closeFn
}

// exit reports err on stderr and returns the process exit code.
func exit(err error) int {
	if err == nil {
		return 0
	}
	var exitErr cli.ExitCoder
	if stderrors.As(err, &exitErr) {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

func run() int {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	// Help and version need neither config nor history
	if isHelpOrVersion(os.Args) {
		return exit(newCLIApp(config.DefaultConfig(), nil).Run(os.Args))
	}

	dir, err := baseDir()
	if err != nil {
		return exit(err)
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return exit(err)
	}

	openDB, closeDB := historyOpener(dir, cfg)
	defer closeDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return exit(newCLIApp(cfg, openDB).RunContext(ctx, os.Args))
}

func main() {
	os.Exit(run())
}

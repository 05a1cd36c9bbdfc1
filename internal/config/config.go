package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ambiguity policies for archives holding more than one server source.
const (
	AmbiguousFirst = "first"
	AmbiguousError = "error"
)

// DirName is the name of both the global (~/.dxtcheck) and repo (.dxtcheck) config directories.
const DirName = ".dxtcheck"

// Config holds application configuration.
type Config struct {
	// ManifestName is the archive entry holding the manifest.
	ManifestName string `json:"manifest_name,omitempty"`

	// ServerFilename is the suffix identifying the server source inside the archive.
	ServerFilename string `json:"server_filename,omitempty"`

	// Marker is the decorator attribute that marks a function as a tool
	// (the "tool" in @mcp.tool()).
	Marker string `json:"marker,omitempty"`

	// MinCommonWords is how many whitespace tokens a manifest description and
	// a docstring must share to count as consistent.
	MinCommonWords int `json:"min_common_words,omitempty"`

	// OnAmbiguous selects what happens when several entries match ServerFilename:
	// "first" picks the first in archive order and warns, "error" fails.
	OnAmbiguous string `json:"on_ambiguous,omitempty"`

	// Strict makes warnings fail validation.
	Strict bool `json:"strict,omitempty"`

	// RecordHistory stores every validation verdict in ~/.dxtcheck/history.db.
	RecordHistory bool `json:"record_history,omitempty"`

	// HistoryMaxRuns caps stored runs; older runs are trimmed after each insert.
	// 0 keeps everything.
	HistoryMaxRuns int `json:"history_max_runs,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// AllowedPaths lists extra absolute directories history exports may be written to,
	// beyond ~/.dxtcheck/exports.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on exports. Symlinks stay rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ManifestName:   "manifest.json",
		ServerFilename: "mcp_server.py",
		Marker:         "tool",
		MinCommonWords: 2,
		OnAmbiguous:    AmbiguousFirst,
	}
}

// Validate rejects settings the validator cannot act on.
func (c *Config) Validate() error {
	switch c.OnAmbiguous {
	case AmbiguousFirst, AmbiguousError:
	default:
		return fmt.Errorf("on_ambiguous must be %q or %q, got %q", AmbiguousFirst, AmbiguousError, c.OnAmbiguous)
	}
	if c.MinCommonWords < 0 {
		return fmt.Errorf("min_common_words must be non-negative, got %d", c.MinCommonWords)
	}
	if c.HistoryMaxRuns < 0 {
		return fmt.Errorf("history_max_runs must be non-negative, got %d", c.HistoryMaxRuns)
	}
	if strings.TrimSpace(c.ServerFilename) == "" {
		return fmt.Errorf("server_filename must not be empty")
	}
	if strings.TrimSpace(c.Marker) == "" {
		return fmt.Errorf("marker must not be empty")
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global directory and the nearest
// repo .dxtcheck directory found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .dxtcheck/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		ManifestName:   pickString(overlay.ManifestName, base.ManifestName),
		ServerFilename: pickString(overlay.ServerFilename, base.ServerFilename),
		Marker:         pickString(overlay.Marker, base.Marker),
		OnAmbiguous:    pickString(overlay.OnAmbiguous, base.OnAmbiguous),
		MinCommonWords: pickInt(overlay.MinCommonWords, base.MinCommonWords),
		HistoryMaxRuns: pickInt(overlay.HistoryMaxRuns, base.HistoryMaxRuns),
		DBMaxOpenConns: pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns: pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.Strict = base.Strict || overlay.Strict
	result.RecordHistory = base.RecordHistory || overlay.RecordHistory
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

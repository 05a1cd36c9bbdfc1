// Package ops implements the operations shared by the CLI and the MCP server:
// validating and extracting DXT bundles and managing the run history.
package ops

import (
	"path/filepath"
	"strings"

	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// SourceOptions selects the server source inside a bundle. Empty fields fall back to config.
type SourceOptions struct {
	ServerFile  string
	OnAmbiguous string
}

// resolve applies config defaults and validates the ambiguity policy.
func (o SourceOptions) resolve(cfg *config.Config) (SourceOptions, error) {
	if strings.TrimSpace(o.ServerFile) == "" {
		o.ServerFile = cfg.ServerFilename
	}
	if o.OnAmbiguous == "" {
		o.OnAmbiguous = cfg.OnAmbiguous
	}
	switch o.OnAmbiguous {
	case config.AmbiguousFirst, config.AmbiguousError:
	default:
		return o, errors.NewInvalidRequest("on_ambiguous must be one of: first, error")
	}
	return o, nil
}

// cleanArchivePath trims and validates a user-supplied archive path.
func cleanArchivePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	return filepath.Clean(path), nil
}

// clampPage applies limit defaults and bounds and a non-negative offset.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

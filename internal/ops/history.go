package ops

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/db"
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/report"
)

// RecordOutput contains the result of the Record operation.
type RecordOutput struct {
	ID      string `json:"id"`
	Trimmed int    `json:"trimmed,omitempty"`
}

// Record stores a validation report in the history and applies cfg.HistoryMaxRuns.
func Record(database *sql.DB, cfg *config.Config, r *report.Report) (*RecordOutput, error) {
	if r == nil {
		return nil, errors.NewInvalidRequest("report is required")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	run := &db.Run{
		ID:            id,
		ArchivePath:   r.Archive,
		ArchiveName:   filepath.Base(r.Archive),
		Passed:        r.Passed,
		Strict:        r.Strict,
		ManifestTools: r.Summary.ManifestTools,
		CodeTools:     r.Summary.CodeTools,
		Signatures:    r.Summary.Signatures,
		Errors:        r.Summary.Errors,
		Warnings:      r.Summary.Warnings,
		ReportJSON:    string(data),
		CreatedAt:     time.Now().Unix(),
	}
	if r.Source != "" {
		source := r.Source
		run.ServerFile = &source
	}

	if err := db.InsertRun(database, run); err != nil {
		return nil, err
	}

	out := &RecordOutput{ID: id}
	if cfg != nil && cfg.HistoryMaxRuns > 0 {
		trimmed, err := db.TrimRuns(database, cfg.HistoryMaxRuns)
		if err != nil {
			return nil, err
		}
		out.Trimmed = trimmed
	}
	return out, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Archive *string // optional filter by archive file name
	Passed  *bool   // optional filter by verdict
	Limit   int     // default: 20, max: 100
	Offset  int     // default: 0
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.Run   `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// History lists recorded runs, newest first, with pagination.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	filter := db.RunFilter{Passed: input.Passed}
	if input.Archive != nil && *input.Archive != "" {
		name := filepath.Base(*input.Archive)
		filter.ArchiveName = &name
	}

	runs, total, err := db.ListRuns(database, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []db.Run{}
	}

	return &HistoryOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// ShowOutput is a recorded run with its decoded report.
type ShowOutput struct {
	Run    db.Run         `json:"run"`
	Report *report.Report `json:"report"`
}

// Show retrieves one recorded run.
func Show(database *sql.DB, id string) (*ShowOutput, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	run, err := db.GetRun(database, id)
	if err != nil {
		return nil, err
	}

	var r report.Report
	if err := json.Unmarshal([]byte(run.ReportJSON), &r); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode report %s: %w", id, err))
	}
	return &ShowOutput{Run: *run, Report: &r}, nil
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Delete permanently removes one recorded run.
func Delete(database *sql.DB, id string) (*DeleteOutput, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.DeleteRun(database, id); err != nil {
		return nil, err
	}
	return &DeleteOutput{ID: id, Deleted: true}, nil
}

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	Archive       *string // optional filter by archive file name
	OlderThanDays *int    // optional, only purge runs recorded more than N days ago
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes recorded runs.
func Purge(database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	filter := db.RunFilter{}
	if input.Archive != nil && *input.Archive != "" {
		name := filepath.Base(*input.Archive)
		filter.ArchiveName = &name
	}
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return nil, errors.NewInvalidRequest("older_than_days must be non-negative")
		}
		cutoff := time.Now().Add(-time.Duration(*input.OlderThanDays) * 24 * time.Hour).Unix()
		filter.Before = &cutoff
	}

	count, err := db.PurgeRuns(database, filter)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, filter.ArchiveName, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, archive *string, olderThanDays *int) string {
	if count == 0 {
		return "No recorded runs to purge"
	}

	runWord := "run"
	if count > 1 {
		runWord = "runs"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, runWord)

	if archive != nil {
		msg += fmt.Sprintf(" of %q", *archive)
	}

	if olderThanDays != nil {
		msg += fmt.Sprintf(" (recorded more than %d days ago)", *olderThanDays)
	}

	return msg
}

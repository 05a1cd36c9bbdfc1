package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/dxtcheck/internal/errors"
)

// Run is one recorded validation verdict.
type Run struct {
	ID            string  `json:"id"`
	ArchivePath   string  `json:"archive_path"`
	ArchiveName   string  `json:"archive_name"`
	ServerFile    *string `json:"server_file,omitempty"`
	Passed        bool    `json:"passed"`
	Strict        bool    `json:"strict"`
	ManifestTools int     `json:"manifest_tools"`
	CodeTools     int     `json:"code_tools"`
	Signatures    int     `json:"signatures"`
	Errors        int     `json:"errors"`
	Warnings      int     `json:"warnings"`
	CreatedAt     int64   `json:"created_at"`

	// ReportJSON is the full report. List queries leave it empty.
	ReportJSON string `json:"-"`
}

// RunFilter narrows list, count, purge and export queries. Nil fields match everything.
type RunFilter struct {
	ArchiveName *string
	Passed      *bool
	// Before matches runs with created_at strictly earlier (unix seconds).
	Before *int64
}

// where builds the WHERE clause and its arguments.
func (f RunFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ArchiveName != nil {
		conds = append(conds, "archive_name = ?")
		args = append(args, *f.ArchiveName)
	}
	if f.Passed != nil {
		conds = append(conds, "passed = ?")
		args = append(args, boolToInt(*f.Passed))
	}
	if f.Before != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, *f.Before)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const runColumns = `id, archive_path, archive_name, server_file, passed, strict,
	manifest_tools, code_tools, signatures, errors, warnings, created_at`

// InsertRun stores a run.
func InsertRun(db *sql.DB, r *Run) error {
	query := `
		INSERT INTO runs (
			id, archive_path, archive_name, server_file, passed, strict,
			manifest_tools, code_tools, signatures, errors, warnings,
			report_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		r.ID, r.ArchivePath, r.ArchiveName, toNullString(r.ServerFile),
		boolToInt(r.Passed), boolToInt(r.Strict),
		r.ManifestTools, r.CodeTools, r.Signatures, r.Errors, r.Warnings,
		r.ReportJSON, r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves a run, including its report, by ULID.
func GetRun(db *sql.DB, id string) (*Run, error) {
	query := `SELECT ` + runColumns + `, report_json FROM runs WHERE id = ?`

	var r Run
	var serverFile sql.NullString
	var passed, strict int
	err := db.QueryRow(query, id).Scan(
		&r.ID, &r.ArchivePath, &r.ArchiveName, &serverFile, &passed, &strict,
		&r.ManifestTools, &r.CodeTools, &r.Signatures, &r.Errors, &r.Warnings,
		&r.CreatedAt, &r.ReportJSON,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	r.ServerFile = fromNullString(serverFile)
	r.Passed = passed != 0
	r.Strict = strict != 0
	return &r, nil
}

// ListRuns returns run summaries, newest first, and the total matching the filter.
func ListRuns(db *sql.DB, filter RunFilter, limit, offset int) ([]Run, int, error) {
	total, err := CountRuns(db, filter)
	if err != nil {
		return nil, 0, err
	}

	where, args := filter.where()
	query := `SELECT ` + runColumns + ` FROM runs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := ScanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return runs, total, nil
}

// CountRuns counts runs matching the filter.
func CountRuns(db *sql.DB, filter RunFilter) (int, error) {
	where, args := filter.where()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`+where, args...).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// DeleteRun removes a single run.
func DeleteRun(db *sql.DB, id string) error {
	result, err := db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// PurgeRuns permanently deletes runs matching the filter and returns how many went.
func PurgeRuns(db *sql.DB, filter RunFilter) (int, error) {
	where, args := filter.where()
	result, err := db.Exec(`DELETE FROM runs`+where, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// TrimRuns keeps only the newest keep runs and returns how many were deleted.
// keep <= 0 deletes nothing.
func TrimRuns(db *sql.DB, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	query := `
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
		)
	`
	result, err := db.Exec(query, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// StreamRuns returns rows of full runs (report included), oldest first, for export.
// Callers must close the rows and read them with ScanRunWithReport.
func StreamRuns(ctx context.Context, db *sql.DB, filter RunFilter) (*sql.Rows, error) {
	where, args := filter.where()
	query := `SELECT ` + runColumns + `, report_json FROM runs` + where + ` ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanRun scans a summary row (runColumns) into a Run.
func ScanRun(rows *sql.Rows) (*Run, error) {
	var r Run
	var serverFile sql.NullString
	var passed, strict int
	err := rows.Scan(
		&r.ID, &r.ArchivePath, &r.ArchiveName, &serverFile, &passed, &strict,
		&r.ManifestTools, &r.CodeTools, &r.Signatures, &r.Errors, &r.Warnings,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ServerFile = fromNullString(serverFile)
	r.Passed = passed != 0
	r.Strict = strict != 0
	return &r, nil
}

// ScanRunWithReport scans a StreamRuns row into a Run.
func ScanRunWithReport(rows *sql.Rows) (*Run, error) {
	var r Run
	var serverFile sql.NullString
	var passed, strict int
	err := rows.Scan(
		&r.ID, &r.ArchivePath, &r.ArchiveName, &serverFile, &passed, &strict,
		&r.ManifestTools, &r.CodeTools, &r.Signatures, &r.Errors, &r.Warnings,
		&r.CreatedAt, &r.ReportJSON,
	)
	if err != nil {
		return nil, err
	}
	r.ServerFile = fromNullString(serverFile)
	r.Passed = passed != 0
	r.Strict = strict != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

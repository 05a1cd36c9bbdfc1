package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a dxtcheck error or finding code.
type ErrorCode string

const (
	ErrMissingFile              ErrorCode = "MISSING_FILE"              // error
	ErrMalformedManifest        ErrorCode = "MALFORMED_MANIFEST"        // error, aborts the run
	ErrParseFailure             ErrorCode = "PARSE_FAILURE"             // warning
	ErrMissingImplementation    ErrorCode = "MISSING_IMPLEMENTATION"    // error
	ErrDescriptionMismatch      ErrorCode = "DESCRIPTION_MISMATCH"      // warning
	ErrUndeclaredImplementation ErrorCode = "UNDECLARED_IMPLEMENTATION" // warning
	ErrDuplicateDeclaration     ErrorCode = "DUPLICATE_DECLARATION"     // error
	ErrDuplicateImplementation  ErrorCode = "DUPLICATE_IMPLEMENTATION"  // warning
	ErrAmbiguousSource          ErrorCode = "AMBIGUOUS_SOURCE"          // warning, or error under policy "error"
	ErrInvalidRequest           ErrorCode = "INVALID_REQUEST"           // error
	ErrNotFound                 ErrorCode = "NOT_FOUND"                 // error
	ErrCancelled                ErrorCode = "CANCELLED"                 // error
	ErrInternal                 ErrorCode = "INTERNAL"                  // error
)

// Severity classifies a finding as fatal to validation or advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// warningCodes lists the codes that never fail validation on their own.
var warningCodes = map[ErrorCode]bool{
	ErrParseFailure:             true,
	ErrDescriptionMismatch:      true,
	ErrUndeclaredImplementation: true,
	ErrDuplicateImplementation:  true,
	ErrAmbiguousSource:          true,
}

// SeverityOf returns the default severity for a code.
func SeverityOf(code ErrorCode) Severity {
	if warningCodes[code] {
		return SeverityWarning
	}
	return SeverityError
}

// CheckError represents a structured error with code, message, and details.
type CheckError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CheckError) Unwrap() error {
	return e.Err
}

// Severity returns the default severity of the error's code.
func (e *CheckError) Severity() Severity {
	return SeverityOf(e.Code)
}

// NewMissingFile creates an error for a required archive entry or file that is absent.
func NewMissingFile(name string) *CheckError {
	return &CheckError{
		Code:    ErrMissingFile,
		Message: fmt.Sprintf("required file not found: %s", name),
		Details: map[string]any{"file": name},
	}
}

// NewMalformedManifest creates an error for a manifest that cannot be decoded.
func NewMalformedManifest(name string, err error) *CheckError {
	msg := fmt.Sprintf("manifest %s is not valid JSON", name)
	if err != nil {
		msg = fmt.Sprintf("manifest %s is not valid JSON: %v", name, err)
	}
	return &CheckError{
		Code:    ErrMalformedManifest,
		Message: msg,
		Details: map[string]any{"file": name},
		Err:     err,
	}
}

// NewParseFailure creates a warning for server source that could not be parsed.
// An empty file names the source generically.
func NewParseFailure(file string, err error) *CheckError {
	target := file
	if target == "" {
		target = "server source"
	}
	cErr := &CheckError{
		Code:    ErrParseFailure,
		Message: fmt.Sprintf("could not parse %s: %v", target, err),
		Err:     err,
	}
	if file != "" {
		cErr.Details = map[string]any{"file": file}
	}
	return cErr
}

// NewAmbiguousSource creates an error listing every entry that matched the server filename.
func NewAmbiguousSource(suffix string, candidates []string) *CheckError {
	return &CheckError{
		Code:    ErrAmbiguousSource,
		Message: fmt.Sprintf("%d archive entries end with %s: %v", len(candidates), suffix, candidates),
		Details: map[string]any{"suffix": suffix, "candidates": candidates},
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *CheckError {
	return &CheckError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a history record that does not exist.
func NewNotFound(identifier string) *CheckError {
	return &CheckError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(operation string) *CheckError {
	return &CheckError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *CheckError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CheckError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err, or anything it wraps, is a CheckError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CheckError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// CodeOf returns the code of a CheckError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var cErr *CheckError
	if stderrors.As(err, &cErr) {
		return cErr.Code
	}
	return ErrInternal
}

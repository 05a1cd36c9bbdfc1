package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCheckError_Error(t *testing.T) {
	err := &CheckError{
		Code:    ErrMissingFile,
		Message: "required file not found: manifest.json",
	}

	expected := "MISSING_FILE: required file not found: manifest.json"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewMissingFile(t *testing.T) {
	err := NewMissingFile("server/main.py")

	if err.Code != ErrMissingFile {
		t.Errorf("Code = %q, want %q", err.Code, ErrMissingFile)
	}
	if err.Details["file"] != "server/main.py" {
		t.Errorf("Details[file] = %v, want %q", err.Details["file"], "server/main.py")
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %q, want %q", err.Severity(), SeverityError)
	}
}

func TestNewMalformedManifest(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := NewMalformedManifest("manifest.json", cause)

	if err.Code != ErrMalformedManifest {
		t.Errorf("Code = %q, want %q", err.Code, ErrMalformedManifest)
	}
	if !stderrors.Is(err, cause) {
		t.Error("NewMalformedManifest should wrap its cause")
	}
}

func TestNewParseFailure(t *testing.T) {
	err := NewParseFailure("vibetest/mcp_server.py", fmt.Errorf("line 3: unterminated string"))

	if err.Code != ErrParseFailure {
		t.Errorf("Code = %q, want %q", err.Code, ErrParseFailure)
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %q, want %q", err.Severity(), SeverityWarning)
	}
	if err.Details["file"] != "vibetest/mcp_server.py" {
		t.Errorf("Details[file] = %v", err.Details["file"])
	}

	anon := NewParseFailure("", fmt.Errorf("bad"))
	if anon.Message != "could not parse server source: bad" {
		t.Errorf("Message = %q", anon.Message)
	}
	if anon.Details != nil {
		t.Errorf("Details = %v, want nil", anon.Details)
	}
}

func TestNewAmbiguousSource(t *testing.T) {
	err := NewAmbiguousSource("mcp_server.py", []string{"a/mcp_server.py", "b/mcp_server.py"})

	if err.Code != ErrAmbiguousSource {
		t.Errorf("Code = %q, want %q", err.Code, ErrAmbiguousSource)
	}
	candidates, ok := err.Details["candidates"].([]string)
	if !ok || len(candidates) != 2 {
		t.Errorf("Details[candidates] = %v, want 2 entries", err.Details["candidates"])
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01J0000000000000000000000")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Details["identifier"] != "01J0000000000000000000000" {
		t.Errorf("Details[identifier] = %v", err.Details["identifier"])
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("export")

	if err.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", err.Code, ErrCancelled)
	}
	if err.Message != "export cancelled" {
		t.Errorf("Message = %q, want %q", err.Message, "export cancelled")
	}
}

func TestNewInternal(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"with cause", fmt.Errorf("disk full"), "disk full"},
		{"nil cause", nil, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewInternal(tt.err)
			if err.Code != ErrInternal {
				t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want Severity
	}{
		{ErrMissingFile, SeverityError},
		{ErrMalformedManifest, SeverityError},
		{ErrMissingImplementation, SeverityError},
		{ErrDuplicateDeclaration, SeverityError},
		{ErrParseFailure, SeverityWarning},
		{ErrDescriptionMismatch, SeverityWarning},
		{ErrUndeclaredImplementation, SeverityWarning},
		{ErrDuplicateImplementation, SeverityWarning},
		{ErrAmbiguousSource, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := SeverityOf(tt.code); got != tt.want {
				t.Errorf("SeverityOf(%s) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewMissingFile("x"), ErrMissingFile, true},
		{"different code", NewMissingFile("x"), ErrNotFound, false},
		{"wrapped", fmt.Errorf("structure: %w", NewMissingFile("x")), ErrMissingFile, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("wrap: %w", NewInvalidRequest("bad"))); got != ErrInvalidRequest {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, ErrInvalidRequest)
	}
	if got := CodeOf(fmt.Errorf("boom")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %q, want %q", got, ErrInternal)
	}
}

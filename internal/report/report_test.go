package report

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/dxtcheck/internal/archive"
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/extract"
)

func strp(s string) *string {
	return &s
}

func scanPageInput() Input {
	return Input{
		Archive:       "vibetest.dxt",
		Source:        "server/mcp_server.py",
		ManifestTools: []archive.ManifestTool{{Name: "scan_page", Description: "Scan a web page for errors"}},
		CodeTools:     []extract.CodeTool{{Name: "scan_page", Description: "Scan a web page for errors and warnings.", Source: "code"}},
		Signatures: extract.SignatureSet{Signatures: []extract.Signature{{
			Name: "scan_page",
			Parameters: []extract.Parameter{
				{Name: "url", Type: strp("str"), Kind: extract.KindPositional},
				{Name: "timeout", Type: strp("int"), Default: &extract.Literal{Kind: extract.LiteralNumber, Text: "30"}, Kind: extract.KindPositional},
			},
			Docstring: "Scan a web page for errors and warnings.",
		}}},
	}
}

func kinds(r *Report) []errors.ErrorCode {
	var out []errors.ErrorCode
	for _, e := range r.Entries {
		out = append(out, e.Kind)
	}
	return out
}

func TestCheck_ScanPagePasses(t *testing.T) {
	r := Check(scanPageInput(), Options{})

	require.True(t, r.Passed)
	require.Empty(t, r.Entries)
	require.Len(t, r.Tools, 1)

	tool := r.Tools[0]
	require.True(t, tool.Implemented)
	require.Equal(t, ConsistencyGood, tool.Consistency)
	require.True(t, tool.HasSignature)
	require.Equal(t, []string{"url:str", "timeout:int=30"}, tool.Parameters)
	require.Equal(t, "Scan a web page for errors and warnings.", tool.Docstring)
	require.Equal(t, Summary{ManifestTools: 1, CodeTools: 1, Signatures: 1}, r.Summary)
}

func TestCheck_MissingImplementation(t *testing.T) {
	in := scanPageInput()
	in.ManifestTools = append(in.ManifestTools,
		archive.ManifestTool{Name: "click_button", Description: "Click a button"},
		archive.ManifestTool{Name: "type_text", Description: "Type text"},
	)

	r := Check(in, Options{})
	require.False(t, r.Passed)
	require.Equal(t, []errors.ErrorCode{errors.ErrMissingImplementation, errors.ErrMissingImplementation}, kinds(r))
	require.Equal(t, "click_button", r.Entries[0].Tool)
	require.Equal(t, "type_text", r.Entries[1].Tool)
	require.Equal(t, errors.SeverityError, r.Entries[0].Severity)
	require.False(t, r.Tools[1].Implemented)
	require.Equal(t, 2, r.Summary.Errors)
}

func TestCheck_UndeclaredImplementationWarns(t *testing.T) {
	in := scanPageInput()
	in.CodeTools = append(in.CodeTools, extract.CodeTool{Name: "debug_dump", Description: "Dump state.", Source: "code"})
	in.Signatures.Signatures = append(in.Signatures.Signatures, extract.Signature{Name: "debug_dump", Docstring: "Dump state."})

	r := Check(in, Options{})
	require.True(t, r.Passed)
	require.Equal(t, []errors.ErrorCode{errors.ErrUndeclaredImplementation}, kinds(r))
	require.Equal(t, "debug_dump", r.Entries[0].Tool)
	require.Len(t, r.Undeclared, 1)
	require.Equal(t, 1, r.Summary.Warnings)

	strict := Check(in, Options{Strict: true})
	require.False(t, strict.Passed)
	require.Len(t, strict.Failed(), 1)
}

func TestCheck_StructuralOnlyTool(t *testing.T) {
	in := scanPageInput()
	in.CodeTools = nil

	r := Check(in, Options{})
	require.True(t, r.Passed)
	require.True(t, r.Tools[0].Implemented)
	require.Equal(t, ConsistencyGood, r.Tools[0].Consistency)

	in.ManifestTools = nil
	r = Check(in, Options{})
	require.Equal(t, []errors.ErrorCode{errors.ErrUndeclaredImplementation}, kinds(r))
}

func TestCheck_DescriptionMismatch(t *testing.T) {
	in := scanPageInput()
	in.CodeTools[0].Description = "Fetch page screenshots"

	r := Check(in, Options{})
	require.True(t, r.Passed)
	require.Equal(t, ConsistencyMismatch, r.Tools[0].Consistency)
	require.Equal(t, []errors.ErrorCode{errors.ErrDescriptionMismatch}, kinds(r))
	require.Equal(t, errors.SeverityWarning, r.Entries[0].Severity)
	require.Equal(t, "Scan a web page for errors", r.Entries[0].Details["manifest"])
	require.Equal(t, "Fetch page screenshots", r.Entries[0].Details["code"])
	require.Equal(t, 1, r.Entries[0].Details["common_words"])
}

func TestCheck_EmptyDescriptionUnchecked(t *testing.T) {
	in := scanPageInput()
	in.ManifestTools[0].Description = ""

	r := Check(in, Options{})
	require.Equal(t, ConsistencyUnchecked, r.Tools[0].Consistency)
	require.Empty(t, r.Entries)
}

func TestCheck_Duplicates(t *testing.T) {
	in := scanPageInput()
	in.ManifestTools = append(in.ManifestTools, in.ManifestTools[0])
	in.CodeTools = append(in.CodeTools, in.CodeTools[0])
	in.Signatures.Duplicates = []string{"scan_page"}

	r := Check(in, Options{})
	require.False(t, r.Passed)
	require.Equal(t, []errors.ErrorCode{errors.ErrDuplicateDeclaration, errors.ErrDuplicateImplementation}, kinds(r))
	require.Equal(t, 2, r.Entries[0].Details["count"])
	require.Len(t, r.Tools, 1)
}

func TestCheck_ParseFailureAndAmbiguity(t *testing.T) {
	in := scanPageInput()
	in.Signatures = extract.SignatureSet{}
	in.ParseErr = errors.NewParseFailure("server/mcp_server.py", fmt.Errorf("line 3, column 1: unterminated string literal"))
	in.OtherSources = []string{"old/mcp_server.py"}

	r := Check(in, Options{})
	require.True(t, r.Passed)
	require.Equal(t, []errors.ErrorCode{errors.ErrAmbiguousSource, errors.ErrParseFailure}, kinds(r))
	require.Equal(t, "could not parse server/mcp_server.py: line 3, column 1: unterminated string literal", r.Entries[1].Message)
	require.Equal(t, "server/mcp_server.py", r.Entries[1].Details["file"])
	require.True(t, r.Tools[0].Implemented)
	require.False(t, r.Tools[0].HasSignature)
	require.NotNil(t, r.Functions)
	require.Equal(t, 0, r.Summary.Signatures)
}

func TestStructureFailure(t *testing.T) {
	r := StructureFailure("missing.dxt", Structure{Manifest: "manifest.json"}, errors.NewMissingFile("manifest.json"))

	require.False(t, r.Passed)
	require.False(t, r.Structure.Passed)
	require.Equal(t, "MISSING_FILE: required file not found: manifest.json", r.Structure.Error)
	require.Equal(t, []errors.ErrorCode{errors.ErrMissingFile}, kinds(r))
	require.Equal(t, "required file not found: manifest.json", r.Entries[0].Message)
	require.Equal(t, 1, r.Summary.Errors)
}

func TestSourceFailure(t *testing.T) {
	tools := []archive.ManifestTool{{Name: "scan_page", Description: "Scan"}}
	r := SourceFailure("bundle.dxt", Structure{Manifest: "manifest.json"}, tools, errors.NewMissingFile("mcp_server.py"))

	require.False(t, r.Passed)
	require.True(t, r.Structure.Passed)
	require.Equal(t, []errors.ErrorCode{errors.ErrMissingFile, errors.ErrMissingImplementation}, kinds(r))
	require.Equal(t, "required file not found: mcp_server.py", r.Entries[0].Message)
	require.Len(t, r.Tools, 1)
	require.False(t, r.Tools[0].Implemented)
	require.Equal(t, 2, r.Summary.Errors)
	require.Equal(t, 1, r.Summary.ManifestTools)
}

func TestSourceFailure_AmbiguousIsError(t *testing.T) {
	err := errors.NewAmbiguousSource("mcp_server.py", []string{"a/mcp_server.py", "b/mcp_server.py"})
	r := SourceFailure("bundle.dxt", Structure{}, nil, err)

	require.False(t, r.Passed)
	require.Equal(t, errors.SeverityError, r.Entries[0].Severity)
	require.Equal(t, 1, r.Summary.Errors)
	require.Equal(t, 0, r.Summary.Warnings)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"two shared", "Scan a web page", "scan the PAGE quickly", 2},
		{"one shared", "Scan a web page", "Fetch page screenshots", 1},
		{"none shared", "Scan a web page", "Click buttons", 0},
		{"repeated words count once", "page page page", "page page", 1},
		{"punctuation is part of the word", "Scan page.", "scan page", 1},
		{"empty", "", "anything", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CommonWords(tt.a, tt.b))
			require.Equal(t, tt.want, CommonWords(tt.b, tt.a))
			require.Equal(t, tt.want >= 2, Similar(tt.a, tt.b, DefaultMinCommonWords))
			require.Equal(t, Similar(tt.a, tt.b, 2), Similar(tt.b, tt.a, 2))
		})
	}
}

// Package report diffs the manifest's declared tools against the code models
// and renders the verdict.
package report

import (
	stderrors "errors"

	"github.com/hpungsan/dxtcheck/internal/archive"
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/extract"
)

// DefaultMinCommonWords is the similarity threshold for descriptions.
const DefaultMinCommonWords = 2

// Consistency outcomes of the description check.
const (
	ConsistencyGood      = "good"
	ConsistencyMismatch  = "mismatch"
	ConsistencyUnchecked = "unchecked"
)

// Input is everything the consistency check compares.
type Input struct {
	Archive       string
	Source        string
	OtherSources  []string
	ManifestTools []archive.ManifestTool
	CodeTools     []extract.CodeTool
	Signatures    extract.SignatureSet
	// ParseErr is the structural pass failure, reported as a warning.
	ParseErr error
}

// Options tunes the check.
type Options struct {
	MinCommonWords int
	// Strict makes warnings fail validation.
	Strict bool
}

// Entry is one finding.
type Entry struct {
	Tool     string           `json:"tool,omitempty" yaml:"tool,omitempty"`
	Kind     errors.ErrorCode `json:"kind" yaml:"kind"`
	Severity errors.Severity  `json:"severity" yaml:"severity"`
	Message  string           `json:"message" yaml:"message"`
	Details  map[string]any   `json:"details,omitempty" yaml:"details,omitempty"`
}

// ToolResult is the outcome for one manifest tool.
type ToolResult struct {
	Name                string   `json:"name" yaml:"name"`
	Implemented         bool     `json:"implemented" yaml:"implemented"`
	ManifestDescription string   `json:"manifest_description" yaml:"manifest_description"`
	CodeDescription     string   `json:"code_description,omitempty" yaml:"code_description,omitempty"`
	Consistency         string   `json:"consistency,omitempty" yaml:"consistency,omitempty"`
	HasSignature        bool     `json:"has_signature" yaml:"has_signature"`
	Parameters          []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Docstring           string   `json:"docstring,omitempty" yaml:"docstring,omitempty"`
}

// Structure is the outcome of the archive structure check.
type Structure struct {
	Passed     bool   `json:"passed" yaml:"passed"`
	Manifest   string `json:"manifest" yaml:"manifest"`
	EntryPoint string `json:"entry_point,omitempty" yaml:"entry_point,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary counts the models and findings.
type Summary struct {
	ManifestTools int `json:"manifest_tools" yaml:"manifest_tools"`
	CodeTools     int `json:"code_tools" yaml:"code_tools"`
	Signatures    int `json:"signatures" yaml:"signatures"`
	Errors        int `json:"errors" yaml:"errors"`
	Warnings      int `json:"warnings" yaml:"warnings"`
}

// Report is the full result of one validation run.
type Report struct {
	Archive    string              `json:"archive" yaml:"archive"`
	Source     string              `json:"source,omitempty" yaml:"source,omitempty"`
	Structure  Structure           `json:"structure" yaml:"structure"`
	Entries    []Entry             `json:"entries" yaml:"entries"`
	Tools      []ToolResult        `json:"tools" yaml:"tools"`
	Undeclared []extract.CodeTool  `json:"undeclared" yaml:"undeclared"`
	Functions  []extract.Signature `json:"functions" yaml:"functions"`
	Summary    Summary             `json:"summary" yaml:"summary"`
	Strict     bool                `json:"strict" yaml:"strict"`
	Passed     bool                `json:"passed" yaml:"passed"`
}

// Check runs the consistency checks. The structure check must already have
// passed; Check marks it so.
func Check(in Input, opts Options) *Report {
	if opts.MinCommonWords <= 0 {
		opts.MinCommonWords = DefaultMinCommonWords
	}

	r := &Report{
		Archive:    in.Archive,
		Source:     in.Source,
		Structure:  Structure{Passed: true},
		Entries:    []Entry{},
		Tools:      []ToolResult{},
		Undeclared: []extract.CodeTool{},
		Functions:  in.Signatures.Signatures,
		Strict:     opts.Strict,
	}
	if r.Functions == nil {
		r.Functions = []extract.Signature{}
	}

	if len(in.OtherSources) > 0 {
		r.add(Entry{
			Kind:    errors.ErrAmbiguousSource,
			Message: "multiple server sources found, using " + in.Source,
			Details: map[string]any{"chosen": in.Source, "ignored": in.OtherSources},
		})
	}
	if in.ParseErr != nil {
		r.add(entryFor(in.ParseErr))
	}

	code, codeDups := uniqueTools(in.CodeTools)
	r.checkDuplicates(in.ManifestTools, codeDups, in.Signatures.Duplicates)

	// A tool counts as implemented when either pass found it.
	declared := make(map[string]bool, len(in.ManifestTools))
	for _, mt := range in.ManifestTools {
		if declared[mt.Name] {
			continue
		}
		declared[mt.Name] = true
		r.Tools = append(r.Tools, r.checkTool(mt, code, in.Signatures, opts.MinCommonWords))
	}

	for _, ct := range code.list {
		if !declared[ct.Name] {
			r.addUndeclared(ct)
		}
	}
	for _, sig := range in.Signatures.Signatures {
		if _, ok := code.byName[sig.Name]; !ok && !declared[sig.Name] {
			r.addUndeclared(extract.CodeTool{Name: sig.Name, Description: sig.Summary(), Source: extract.SourceCode})
		}
	}

	r.Summary.ManifestTools = len(in.ManifestTools)
	r.Summary.CodeTools = len(in.CodeTools)
	r.Summary.Signatures = in.Signatures.Len()
	r.finish()
	return r
}

// StructureFailure builds the report for a run whose structure check failed.
// The consistency check is not attempted.
func StructureFailure(archivePath string, s Structure, err error) *Report {
	s.Passed = false
	if err != nil && s.Error == "" {
		s.Error = err.Error()
	}
	r := &Report{
		Archive:    archivePath,
		Structure:  s,
		Entries:    []Entry{},
		Tools:      []ToolResult{},
		Undeclared: []extract.CodeTool{},
		Functions:  []extract.Signature{},
	}
	if err != nil {
		r.add(entryFor(err))
	}
	r.finish()
	return r
}

// SourceFailure builds the report for an archive whose structure is sound but
// whose server source could not be selected (absent, or ambiguous under the
// "error" policy). Every declared tool is reported missing.
func SourceFailure(archivePath string, s Structure, manifestTools []archive.ManifestTool, err error) *Report {
	in := Input{Archive: archivePath, ManifestTools: manifestTools}
	r := Check(in, Options{})
	r.Structure = s
	r.Structure.Passed = true

	entry := entryFor(err)
	entry.Severity = errors.SeverityError
	r.Entries = append([]Entry{entry}, r.Entries...)
	r.finish()
	return r
}

// SetStrict switches strict mode and recomputes the verdict.
func (r *Report) SetStrict(strict bool) {
	r.Strict = strict
	r.finish()
}

// Failed reports findings that fail validation, honoring Strict.
func (r *Report) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Severity == errors.SeverityError || r.Strict {
			out = append(out, e)
		}
	}
	return out
}

// entryFor turns err into a finding. The code goes in Kind, so the message
// carries only the text.
func entryFor(err error) Entry {
	var cErr *errors.CheckError
	if stderrors.As(err, &cErr) {
		return Entry{Kind: cErr.Code, Message: cErr.Message, Details: cErr.Details}
	}
	return Entry{Kind: errors.CodeOf(err), Message: err.Error()}
}

func (r *Report) add(e Entry) {
	if e.Severity == "" {
		e.Severity = errors.SeverityOf(e.Kind)
	}
	r.Entries = append(r.Entries, e)
}

func (r *Report) addUndeclared(ct extract.CodeTool) {
	r.Undeclared = append(r.Undeclared, ct)
	r.add(Entry{
		Tool:    ct.Name,
		Kind:    errors.ErrUndeclaredImplementation,
		Message: "implemented in code but not declared in manifest",
		Details: map[string]any{"description": ct.Description},
	})
}

func (r *Report) finish() {
	r.Summary.Errors, r.Summary.Warnings = 0, 0
	for _, e := range r.Entries {
		if e.Severity == errors.SeverityError {
			r.Summary.Errors++
		} else {
			r.Summary.Warnings++
		}
	}
	r.Passed = r.Structure.Passed && r.Summary.Errors == 0 && (!r.Strict || r.Summary.Warnings == 0)
}

func (r *Report) checkDuplicates(manifest []archive.ManifestTool, codeDups, sigDups []string) {
	counts := make(map[string]int)
	var order []string
	for _, mt := range manifest {
		if counts[mt.Name] == 0 {
			order = append(order, mt.Name)
		}
		counts[mt.Name]++
	}
	for _, name := range order {
		if n := counts[name]; n > 1 {
			r.add(Entry{
				Tool:    name,
				Kind:    errors.ErrDuplicateDeclaration,
				Message: "tool declared more than once in manifest",
				Details: map[string]any{"count": n},
			})
		}
	}

	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, codeDups...), sigDups...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		r.add(Entry{
			Tool:    name,
			Kind:    errors.ErrDuplicateImplementation,
			Message: "tool function defined more than once, first definition used",
		})
	}
}

func (r *Report) checkTool(mt archive.ManifestTool, code toolIndex, sigs extract.SignatureSet, minCommon int) ToolResult {
	res := ToolResult{Name: mt.Name, ManifestDescription: mt.Description}

	sig, hasSig := sigs.Lookup(mt.Name)
	ct, hasTool := code.byName[mt.Name]
	switch {
	case hasTool:
		res.CodeDescription = ct.Description
	case hasSig:
		res.CodeDescription = sig.Summary()
	default:
		r.add(Entry{
			Tool:    mt.Name,
			Kind:    errors.ErrMissingImplementation,
			Message: "declared in manifest but missing in code",
		})
		return res
	}
	res.Implemented = true

	if mt.Description == "" || res.CodeDescription == "" {
		res.Consistency = ConsistencyUnchecked
	} else if Similar(mt.Description, res.CodeDescription, minCommon) {
		res.Consistency = ConsistencyGood
	} else {
		res.Consistency = ConsistencyMismatch
		r.add(Entry{
			Tool:    mt.Name,
			Kind:    errors.ErrDescriptionMismatch,
			Message: "manifest and code descriptions share too few words",
			Details: map[string]any{
				"manifest":     mt.Description,
				"code":         res.CodeDescription,
				"common_words": CommonWords(mt.Description, res.CodeDescription),
			},
		})
	}

	if hasSig {
		res.HasSignature = true
		res.Parameters = make([]string, len(sig.Parameters))
		for i, p := range sig.Parameters {
			res.Parameters[i] = p.String()
		}
		res.Docstring = sig.Summary()
	}
	return res
}

type toolIndex struct {
	list   []extract.CodeTool
	byName map[string]extract.CodeTool
}

// uniqueTools keeps the first tool of each name and returns repeated names.
func uniqueTools(tools []extract.CodeTool) (toolIndex, []string) {
	idx := toolIndex{byName: make(map[string]extract.CodeTool, len(tools))}
	var dups []string
	dupSeen := make(map[string]bool)
	for _, t := range tools {
		if _, ok := idx.byName[t.Name]; ok {
			if !dupSeen[t.Name] {
				dups = append(dups, t.Name)
				dupSeen[t.Name] = true
			}
			continue
		}
		idx.byName[t.Name] = t
		idx.list = append(idx.list, t)
	}
	return idx, dups
}

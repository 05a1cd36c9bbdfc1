package ops

import (
	"context"
	stderrors "errors"

	"github.com/hpungsan/dxtcheck/internal/archive"
	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/extract"
	"github.com/hpungsan/dxtcheck/internal/report"
)

// ValidateInput contains parameters for the Validate operation.
type ValidateInput struct {
	Path string // required
	SourceOptions
	Strict *bool // default: cfg.Strict
}

// Validate runs the structure check and, when it passes, the consistency check.
// Bundle problems are findings in the returned report; the error is reserved for
// invalid input and cancellation.
func Validate(ctx context.Context, cfg *config.Config, input ValidateInput) (*report.Report, error) {
	path, err := cleanArchivePath(input.Path)
	if err != nil {
		return nil, err
	}
	opts, err := input.SourceOptions.resolve(cfg)
	if err != nil {
		return nil, err
	}
	strict := cfg.Strict
	if input.Strict != nil {
		strict = *input.Strict
	}

	in, err := archive.Open(path)
	if err != nil {
		return finish(report.StructureFailure(path, report.Structure{Manifest: cfg.ManifestName}, err), strict), nil
	}
	defer in.Close()

	manifest, structure, err := ValidateStructure(in, cfg)
	if err != nil {
		return finish(report.StructureFailure(path, structure, err), strict), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("validate")
	}

	r := ValidateConsistency(in, manifest, structure, cfg, opts, strict)
	return r, nil
}

// ValidateStructure reads the manifest and checks the entry point it declares.
// The returned Structure is filled in either way.
func ValidateStructure(in *archive.Inspector, cfg *config.Config) (*archive.Manifest, report.Structure, error) {
	s := report.Structure{Manifest: cfg.ManifestName}

	manifest, err := in.ReadManifest(cfg.ManifestName)
	if err != nil {
		return nil, s, err
	}
	s.EntryPoint = manifest.Server.EntryPoint

	if err := in.VerifyEntryPoint(manifest); err != nil {
		return nil, s, err
	}
	s.Passed = true
	return manifest, s, nil
}

// ValidateConsistency compares the manifest against the code models of the
// selected server source.
func ValidateConsistency(in *archive.Inspector, manifest *archive.Manifest, s report.Structure, cfg *config.Config, opts SourceOptions, strict bool) *report.Report {
	src, err := in.FindServerSource(opts.ServerFile, opts.OnAmbiguous)
	if err != nil {
		return finish(report.SourceFailure(in.Path(), s, manifest.Tools, err), strict)
	}

	res := extract.Extract(src.Text, cfg.Marker)
	r := report.Check(report.Input{
		Archive:       in.Path(),
		Source:        src.Name,
		OtherSources:  src.Others,
		ManifestTools: manifest.Tools,
		CodeTools:     res.Tools,
		Signatures:    res.Signatures,
		ParseErr:      sourceParseErr(src.Name, res.ParseErr),
	}, report.Options{MinCommonWords: cfg.MinCommonWords, Strict: strict})
	r.Structure = s
	return r
}

// finish applies the strict flag to reports built without options.
func finish(r *report.Report, strict bool) *report.Report {
	r.SetStrict(strict)
	return r
}

// sourceParseErr names the entry in a parse failure raised against anonymous text.
func sourceParseErr(name string, err error) error {
	if err == nil {
		return nil
	}
	cause := err
	var cErr *errors.CheckError
	if stderrors.As(err, &cErr) && cErr.Err != nil {
		cause = cErr.Err
	}
	return errors.NewParseFailure(name, cause)
}

// ExtractInput contains parameters for the Extract operation.
type ExtractInput struct {
	Path string // required
	SourceOptions
}

// ExtractOutput contains both code models of a bundle's server source.
type ExtractOutput struct {
	Archive    string                 `json:"archive" yaml:"archive"`
	Source     string                 `json:"source" yaml:"source"`
	Others     []string               `json:"other_sources,omitempty" yaml:"other_sources,omitempty"`
	Tools      []extract.CodeTool     `json:"tools" yaml:"tools"`
	Signatures []extract.Signature    `json:"signatures" yaml:"signatures"`
	Duplicates []string               `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	ParseError string                 `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
	Manifest   []archive.ManifestTool `json:"manifest_tools,omitempty" yaml:"manifest_tools,omitempty"`
}

// Extract returns the pattern and structural models of the bundle's server
// source without comparing them to the manifest. Manifest tools are included
// when the manifest decodes.
func Extract(ctx context.Context, cfg *config.Config, input ExtractInput) (*ExtractOutput, error) {
	path, err := cleanArchivePath(input.Path)
	if err != nil {
		return nil, err
	}
	opts, err := input.SourceOptions.resolve(cfg)
	if err != nil {
		return nil, err
	}

	in, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	src, err := in.FindServerSource(opts.ServerFile, opts.OnAmbiguous)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("extract")
	}

	res := extract.Extract(src.Text, cfg.Marker)
	out := &ExtractOutput{
		Archive:    path,
		Source:     src.Name,
		Others:     src.Others,
		Tools:      res.Tools,
		Signatures: res.Signatures.Signatures,
		Duplicates: res.Signatures.Duplicates,
	}
	if res.ParseErr != nil {
		out.ParseError = sourceParseErr(src.Name, res.ParseErr).Error()
	}
	if m, err := in.ReadManifest(cfg.ManifestName); err == nil {
		out.Manifest = m.Tools
	}
	return out, nil
}

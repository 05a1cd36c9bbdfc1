package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/dxtcheck/internal/errors"
)

// Format selects a report renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatMarkdown, FormatHTML}

// ParseFormat validates a format name. Empty means text; "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (want text, json, yaml, markdown or html)", s))
}

// Write renders r in format f.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatText, "":
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatHTML:
		return WriteHTML(w, r)
	}
	return errors.NewInvalidRequest(fmt.Sprintf("unknown format %q", f))
}

// Render returns r rendered in format f.
func Render(r *Report, f Format) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, r, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteYAML writes r as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// Markdown renders r as a markdown document.
func Markdown(r *Report) string {
	var b strings.Builder

	b.WriteString("# DXT validation report\n\n")
	fmt.Fprintf(&b, "- **Archive:** `%s`\n", r.Archive)
	if r.Source != "" {
		fmt.Fprintf(&b, "- **Server source:** `%s`\n", r.Source)
	}
	if r.Passed {
		b.WriteString("- **Result:** ✅ passed\n")
	} else {
		b.WriteString("- **Result:** ❌ failed\n")
	}
	if r.Strict {
		b.WriteString("- **Mode:** strict\n")
	}

	b.WriteString("\n## Structure\n\n")
	if r.Structure.Passed {
		b.WriteString("Structure validation passed.\n")
	} else {
		fmt.Fprintf(&b, "Structure validation failed: %s\n", mdEscape(r.Structure.Error))
	}

	if len(r.Tools) > 0 {
		b.WriteString("\n## Tools\n\n")
		b.WriteString("| Tool | Implemented | Description | Parameters |\n")
		b.WriteString("|------|-------------|-------------|------------|\n")
		for _, t := range r.Tools {
			implemented := "❌ missing"
			if t.Implemented {
				implemented = "✅"
			}
			params := "-"
			if t.HasSignature {
				params = "None"
				if len(t.Parameters) > 0 {
					params = "`" + strings.Join(t.Parameters, "`, `") + "`"
				}
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(t.Name), implemented, consistencyLabel(t), cell(params))
		}
	}

	if len(r.Entries) > 0 {
		b.WriteString("\n## Findings\n\n")
		for _, e := range r.Entries {
			fmt.Fprintf(&b, "- **%s** `%s`", strings.ToUpper(string(e.Severity)), e.Kind)
			if e.Tool != "" {
				fmt.Fprintf(&b, " %s", mdEscape(e.Tool))
			}
			fmt.Fprintf(&b, ": %s\n", mdEscape(e.Message))
			if e.Kind == errors.ErrDescriptionMismatch {
				fmt.Fprintf(&b, "  - Manifest: %s\n", mdEscape(fmt.Sprint(e.Details["manifest"])))
				fmt.Fprintf(&b, "  - Code: %s\n", mdEscape(fmt.Sprint(e.Details["code"])))
			}
		}
	}

	if len(r.Functions) > 0 {
		b.WriteString("\n## Functions\n")
		for _, sig := range r.Functions {
			fmt.Fprintf(&b, "\n### %s\n\n", mdEscape(sig.Name))
			if sig.Docstring != "" {
				for _, line := range strings.Split(Truncate(sig.Docstring, docstringLimit), "\n") {
					fmt.Fprintf(&b, "> %s\n", mdEscape(line))
				}
				b.WriteString("\n")
			}
			if len(sig.Parameters) == 0 {
				b.WriteString("No parameters.\n")
				continue
			}
			b.WriteString("| Parameter | Type | Default |\n")
			b.WriteString("|-----------|------|---------|\n")
			for _, p := range sig.Parameters {
				def := "-"
				if p.Default != nil {
					def = "`" + p.Default.Text + "`"
				}
				fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(p.Name), cell(p.TypeName()), cell(def))
			}
		}
	}

	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Manifest tools | Code tools | Signatures | Errors | Warnings |\n")
	b.WriteString("|----------------|------------|------------|--------|----------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n",
		r.Summary.ManifestTools, r.Summary.CodeTools, r.Summary.Signatures, r.Summary.Errors, r.Summary.Warnings)
	return b.String()
}

func consistencyLabel(t ToolResult) string {
	switch t.Consistency {
	case ConsistencyGood:
		return "Good"
	case ConsistencyMismatch:
		return "⚠️ mismatch"
	case ConsistencyUnchecked:
		return "not checked"
	}
	return "-"
}

var mdReplacer = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", "[", `\[`)

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}

// cell escapes a table cell. Code spans keep their content.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if !strings.HasPrefix(s, "`") {
		s = mdEscape(s)
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.Table))

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>dxtcheck: {{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
blockquote { color: #555; border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTMLFragment converts the markdown report to HTML without a page wrapper.
func HTMLFragment(r *Report) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(Markdown(r)), &buf); err != nil {
		return "", errors.NewInternal(err)
	}
	return template.HTML(buf.String()), nil
}

// WriteHTML writes r as a standalone HTML page.
func WriteHTML(w io.Writer, r *Report) error {
	body, err := HTMLFragment(r)
	if err != nil {
		return err
	}
	return pageTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{Title: r.Archive, Body: body})
}

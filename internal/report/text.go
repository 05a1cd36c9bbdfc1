package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/extract"
)

const (
	rule           = "=================================================="
	docstringLimit = 100
)

// itemKinds are rendered inline with their tool instead of under Notes.
var itemKinds = map[errors.ErrorCode]bool{
	errors.ErrMissingImplementation:    true,
	errors.ErrDescriptionMismatch:      true,
	errors.ErrUndeclaredImplementation: true,
}

// WriteText renders the human-readable report.
func WriteText(w io.Writer, r *Report) error {
	var b strings.Builder

	b.WriteString("🔍 Validating DXT structure...\n")
	if !r.Structure.Passed {
		fmt.Fprintf(&b, "❌ Structure validation failed: %s\n", r.Structure.Error)
		writeBanner(&b, r)
		_, err := io.WriteString(w, b.String())
		return err
	}
	b.WriteString("✅ DXT structure validation passed\n\n")

	fmt.Fprintf(&b, "🔍 Validating MCP actions in %s...\n", r.Archive)
	fmt.Fprintf(&b, "📋 Manifest tools declared: %d\n", r.Summary.ManifestTools)
	if r.Source != "" {
		fmt.Fprintf(&b, "🐍 Server source: %s\n", r.Source)
	}
	fmt.Fprintf(&b, "🐍 Code tools found: %d\n", r.Summary.CodeTools)

	b.WriteString("\n📊 Tool Validation Results:\n")
	b.WriteString(rule + "\n")
	for _, t := range r.Tools {
		writeTool(&b, t)
	}
	for _, ct := range r.Undeclared {
		fmt.Fprintf(&b, "⚠️  %s: Implemented in code but not declared in manifest\n", ct.Name)
		fmt.Fprintf(&b, "   📝 Description: %s\n", ct.Description)
	}

	var notes []Entry
	for _, e := range r.Entries {
		if !itemKinds[e.Kind] {
			notes = append(notes, e)
		}
	}
	if len(notes) > 0 {
		b.WriteString("\n📌 Notes:\n")
		for _, e := range notes {
			icon := "⚠️ "
			if e.Severity == errors.SeverityError {
				icon = "❌"
			}
			if e.Tool != "" {
				fmt.Fprintf(&b, "%s [%s] %s: %s\n", icon, e.Kind, e.Tool, e.Message)
			} else {
				fmt.Fprintf(&b, "%s [%s] %s\n", icon, e.Kind, e.Message)
			}
		}
	}

	b.WriteString("\n🔍 Detailed Function Analysis:\n")
	b.WriteString(rule + "\n")
	for _, sig := range r.Functions {
		writeFunction(&b, sig)
	}

	writeBanner(&b, r)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeTool(b *strings.Builder, t ToolResult) {
	if !t.Implemented {
		fmt.Fprintf(b, "❌ %s: Declared in manifest ✓ Missing in code ✗\n", t.Name)
		return
	}
	fmt.Fprintf(b, "✅ %s: Declared in manifest ✓ Implemented in code ✓\n", t.Name)

	switch t.Consistency {
	case ConsistencyGood:
		b.WriteString("   📝 Description consistency: Good\n")
	case ConsistencyMismatch:
		b.WriteString("   ⚠️  Description mismatch:\n")
		fmt.Fprintf(b, "      Manifest: %s\n", t.ManifestDescription)
		fmt.Fprintf(b, "      Code: %s\n", t.CodeDescription)
	default:
		b.WriteString("   📝 Description consistency: Not checked (empty description)\n")
	}

	if !t.HasSignature {
		return
	}
	if len(t.Parameters) == 0 {
		b.WriteString("   🔧 Parameters: None\n")
	} else {
		fmt.Fprintf(b, "   🔧 Parameters: %s\n", strings.Join(t.Parameters, ", "))
	}
	if t.Docstring != "" {
		fmt.Fprintf(b, "   📖 Docstring: %s\n", t.Docstring)
	}
}

func writeFunction(b *strings.Builder, sig extract.Signature) {
	fmt.Fprintf(b, "\n🔧 Function: %s\n", sig.Name)
	fmt.Fprintf(b, "   📖 Docstring: %s\n", Truncate(sig.Docstring, docstringLimit))
	if len(sig.Parameters) == 0 {
		b.WriteString("   📋 Parameters: None\n")
		return
	}
	b.WriteString("   📋 Parameters:\n")
	for _, p := range sig.Parameters {
		fmt.Fprintf(b, "      - %s\n", describeParam(p))
	}
}

// describeParam renders "name: type = default", omitting absent parts.
func describeParam(p extract.Parameter) string {
	var s strings.Builder
	switch p.Kind {
	case extract.KindVarPositional:
		s.WriteString("*")
	case extract.KindVarKeyword:
		s.WriteString("**")
	}
	s.WriteString(p.Name)
	if p.Type != nil {
		s.WriteString(": " + *p.Type)
	}
	if p.Default != nil {
		s.WriteString(" = " + p.Default.Text)
	}
	return s.String()
}

func writeBanner(b *strings.Builder, r *Report) {
	if r.Passed {
		b.WriteString("\n✅ VALIDATION PASSED\n")
	} else {
		b.WriteString("\n❌ VALIDATION FAILED\n")
	}
	b.WriteString("📊 Summary:\n")
	fmt.Fprintf(b, "   - Manifest tools: %d\n", r.Summary.ManifestTools)
	fmt.Fprintf(b, "   - Code tools: %d\n", r.Summary.CodeTools)
	fmt.Fprintf(b, "   - Function signatures: %d\n", r.Summary.Signatures)
	fmt.Fprintf(b, "   - Errors: %d\n", r.Summary.Errors)
	fmt.Fprintf(b, "   - Warnings: %d\n", r.Summary.Warnings)
}

// Truncate shortens s to limit runes followed by "..." when it is longer.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

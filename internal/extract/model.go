// Package extract builds the code-side capability models of a server source:
// a lenient text-pattern model and a structural model from a full parse.
package extract

import "strings"

// DefaultMarker is the decorator attribute that declares a tool.
const DefaultMarker = "tool"

// SourceCode tags every CodeTool.
const SourceCode = "code"

// CodeTool is a tool found by the pattern pass.
type CodeTool struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Source      string `json:"source" yaml:"source"`
}

// ParamKind classifies a parameter by how it binds.
type ParamKind string

const (
	KindPositional    ParamKind = "positional"
	KindKeywordOnly   ParamKind = "keyword_only"
	KindVarPositional ParamKind = "var_positional"
	KindVarKeyword    ParamKind = "var_keyword"
)

// LiteralKind identifies the type of a captured default value.
type LiteralKind string

const (
	LiteralName     LiteralKind = "name"
	LiteralString   LiteralKind = "string"
	LiteralNumber   LiteralKind = "number"
	LiteralBool     LiteralKind = "bool"
	LiteralNone     LiteralKind = "none"
	LiteralEllipsis LiteralKind = "ellipsis"
)

// Literal is a simple default value. Text is its printable form, with
// strings unquoted.
type Literal struct {
	Kind LiteralKind `json:"kind" yaml:"kind"`
	Text string      `json:"text" yaml:"text"`
}

// Parameter is one parameter of a tool function.
type Parameter struct {
	Name    string    `json:"name" yaml:"name"`
	Type    *string   `json:"type,omitempty" yaml:"type,omitempty"`
	Default *Literal  `json:"default,omitempty" yaml:"default,omitempty"`
	Kind    ParamKind `json:"kind" yaml:"kind"`
}

// TypeName returns the annotation, or "any" when there is none.
func (p Parameter) TypeName() string {
	if p.Type == nil {
		return "any"
	}
	return *p.Type
}

// String renders the parameter as name:type=default, with * or ** for variadics.
func (p Parameter) String() string {
	var b strings.Builder
	switch p.Kind {
	case KindVarPositional:
		b.WriteString("*")
	case KindVarKeyword:
		b.WriteString("**")
	}
	b.WriteString(p.Name)
	b.WriteString(":")
	b.WriteString(p.TypeName())
	if p.Default != nil {
		b.WriteString("=")
		b.WriteString(p.Default.Text)
	}
	return b.String()
}

// Signature is a decorated function from the structural pass.
type Signature struct {
	Name       string      `json:"name" yaml:"name"`
	Parameters []Parameter `json:"parameters" yaml:"parameters"`
	Docstring  string      `json:"docstring" yaml:"docstring"`
	Async      bool        `json:"async" yaml:"async"`
	Line       int         `json:"line" yaml:"line"`
}

// Summary returns the first line of the docstring.
func (s Signature) Summary() string {
	line, _, _ := strings.Cut(s.Docstring, "\n")
	return strings.TrimSpace(line)
}

// SignatureSet is the structural model. Signatures keep source order and
// unique names; later definitions of a name are listed in Duplicates.
type SignatureSet struct {
	Signatures []Signature `json:"signatures" yaml:"signatures"`
	Duplicates []string    `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// Lookup returns the signature named name.
func (s SignatureSet) Lookup(name string) (Signature, bool) {
	for _, sig := range s.Signatures {
		if sig.Name == name {
			return sig, true
		}
	}
	return Signature{}, false
}

// Len returns the number of signatures.
func (s SignatureSet) Len() int {
	return len(s.Signatures)
}

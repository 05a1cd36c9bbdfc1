package extract

import (
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/pyparse"
)

// receiverName is excluded from parameter lists.
const receiverName = "self"

// Signatures parses src and returns the signature of every function carrying
// the marker decorator. A parse failure yields an empty set and a
// PARSE_FAILURE error.
func Signatures(src, marker string) (SignatureSet, error) {
	if marker == "" {
		marker = DefaultMarker
	}

	mod, err := pyparse.Parse(src)
	if err != nil {
		return SignatureSet{Signatures: []Signature{}}, errors.NewParseFailure("", err)
	}

	set := SignatureSet{Signatures: []Signature{}}
	seen := make(map[string]bool)
	reported := make(map[string]bool)
	for _, fn := range mod.Funcs {
		if !HasMarker(fn, marker) {
			continue
		}
		if seen[fn.Name] {
			if !reported[fn.Name] {
				set.Duplicates = append(set.Duplicates, fn.Name)
				reported[fn.Name] = true
			}
			continue
		}
		seen[fn.Name] = true
		set.Signatures = append(set.Signatures, signatureOf(fn))
	}
	return set, nil
}

// HasMarker reports whether one of fn's decorators is a call of an attribute
// named marker, as in @mcp.tool().
func HasMarker(fn *pyparse.FuncDef, marker string) bool {
	for _, d := range fn.Decorators {
		call, ok := d.(pyparse.Call)
		if !ok {
			continue
		}
		if attr, ok := call.Func.(pyparse.Attribute); ok && attr.Attr == marker {
			return true
		}
	}
	return false
}

func signatureOf(fn *pyparse.FuncDef) Signature {
	args := fn.Args

	var positional []Parameter
	for _, a := range args.Positional() {
		positional = append(positional, Parameter{Name: a.Name, Type: annotationOf(a.Annotation), Kind: KindPositional})
	}
	defaults := make([]*Literal, len(args.Defaults))
	for i, d := range args.Defaults {
		defaults[i] = literalOf(d)
	}

	var params []Parameter
	for _, p := range BindDefaults(positional, defaults) {
		if p.Name == receiverName {
			continue
		}
		params = append(params, p)
	}

	if args.VarArg != nil {
		params = append(params, Parameter{Name: args.VarArg.Name, Type: annotationOf(args.VarArg.Annotation), Kind: KindVarPositional})
	}
	for i, a := range args.KwOnly {
		p := Parameter{Name: a.Name, Type: annotationOf(a.Annotation), Kind: KindKeywordOnly}
		if i < len(args.KwDefaults) {
			p.Default = literalOf(args.KwDefaults[i])
		}
		params = append(params, p)
	}
	if args.KwArg != nil {
		params = append(params, Parameter{Name: args.KwArg.Name, Type: annotationOf(args.KwArg.Annotation), Kind: KindVarKeyword})
	}

	sig := Signature{
		Name:       fn.Name,
		Parameters: params,
		Async:      fn.Async,
		Line:       fn.Pos.Line,
	}
	if fn.Docstring != nil {
		sig.Docstring = pyparse.CleanDoc(*fn.Docstring)
	}
	if sig.Parameters == nil {
		sig.Parameters = []Parameter{}
	}
	return sig
}

// annotationOf captures bare names and literals only.
func annotationOf(e pyparse.Expr) *string {
	switch v := e.(type) {
	case pyparse.Name:
		return &v.ID
	case pyparse.Constant:
		s := v.String()
		return &s
	}
	return nil
}

// literalOf captures bare names, literals and negated numbers only.
func literalOf(e pyparse.Expr) *Literal {
	switch v := e.(type) {
	case pyparse.Name:
		return &Literal{Kind: LiteralName, Text: v.ID}
	case pyparse.Constant:
		return &Literal{Kind: literalKinds[v.Kind], Text: v.String()}
	case pyparse.UnaryOp:
		if c, ok := v.Operand.(pyparse.Constant); ok && v.Op == "-" && c.Kind == pyparse.ConstNumber {
			return &Literal{Kind: LiteralNumber, Text: "-" + c.Value}
		}
	}
	return nil
}

var literalKinds = map[pyparse.ConstKind]LiteralKind{
	pyparse.ConstString:   LiteralString,
	pyparse.ConstNumber:   LiteralNumber,
	pyparse.ConstBool:     LiteralBool,
	pyparse.ConstNone:     LiteralNone,
	pyparse.ConstEllipsis: LiteralEllipsis,
}

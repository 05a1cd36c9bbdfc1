package extract

// Result holds both code-side models of one source file.
type Result struct {
	Tools      []CodeTool   `json:"tools" yaml:"tools"`
	Signatures SignatureSet `json:"signatures" yaml:"signatures"`
	// ParseErr is the PARSE_FAILURE from the structural pass, if any.
	ParseErr error `json:"-" yaml:"-"`
}

// Extract runs the pattern pass and the structural pass over src.
func Extract(src, marker string) Result {
	set, err := Signatures(src, marker)
	tools := ToolsFromText(src, marker)
	if tools == nil {
		tools = []CodeTool{}
	}
	return Result{Tools: tools, Signatures: set, ParseErr: err}
}

package extract

// BindDefaults maps defaults onto params from the right: the last K
// parameters receive the K defaults in order. A nil default leaves its
// parameter unbound. Defaults beyond the parameter count are dropped from the
// left. params is not modified.
func BindDefaults(params []Parameter, defaults []*Literal) []Parameter {
	out := make([]Parameter, len(params))
	copy(out, params)

	if len(defaults) > len(out) {
		defaults = defaults[len(defaults)-len(out):]
	}
	offset := len(out) - len(defaults)
	for i, d := range defaults {
		out[offset+i].Default = d
	}
	return out
}

package schema

// Compile translates a Target into a normalised JSON Schema and an
// Instantiation Plan for reversing a decoded value back to it. Non-record
// targets are wrapped under a synthetic object with a single known
// property, since most providers only accept an object-shaped schema at
// the root; record targets are returned as-is.
func Compile(t Target, opts ...Option) (*Schema, Plan, error) {
	options := resolveOptions(opts)

	raw, err := build(t)
	if err != nil {
		return nil, Plan{}, NewCompileError(err.Error())
	}

	normalized := Normalize(raw, options)

	if t.Kind == KindRecord {
		return normalized, Plan{Target: t, Wrapped: false}, nil
	}

	wrapKey := options.WrapKey
	wrapped := &Schema{
		Type:           "object",
		Properties:     map[string]*Schema{wrapKey: normalized},
		PropertyOrder:  []string{wrapKey},
		Required:       []string{wrapKey},
		RootRestricted: true,
		ExtraRootKeys:  options.ExtraRootKeys,
	}
	if t.Description != "" {
		wrapped.Description = t.Description
	}
	return wrapped, Plan{Target: t, Wrapped: true, WrapKey: wrapKey}, nil
}

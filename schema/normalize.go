package schema

// Normalize applies a fixed sequence of normalisation rules to an arbitrary
// schema (one built by Compile, or one parsed from a raw document via
// FromMap). The result has no $refs, no titles, and only
// provider-recognised root keys.
func Normalize(s *Schema, opts Options) *Schema {
	if s == nil {
		return nil
	}
	s = inlineRefs(s, s.Defs, map[string]*Schema{})
	s.Defs = nil
	stripTitles(s, opts.DescriptionFromTitle)
	if opts.CollapseSingleUnion {
		s = collapseSingleUnion(s)
	}
	applyDefaultPolicy(s, opts.StripDefaults)
	if opts.ForceRequired {
		forceRequired(s)
	}
	restrictRootKeys(s, opts.ExtraRootKeys)
	return s
}

// inlineRefs resolves and inlines all $ref fragments, replacing
// each $ref node with a deep copy of its target so no two nodes alias the
// same *Schema (required since later steps mutate in place).
func inlineRefs(s *Schema, defs map[string]*Schema, inFlight map[string]*Schema) *Schema {
	if s == nil {
		return nil
	}
	if s.Ref != "" {
		name := refName(s.Ref)
		if resolved, ok := inFlight[name]; ok {
			// Cycle: recursive targets are out of scope for this compiler;
			// return the partially-resolved node rather than recursing forever.
			return resolved
		}
		target, ok := defs[name]
		if !ok {
			return s
		}
		placeholder := &Schema{}
		inFlight[name] = placeholder
		resolved := inlineRefs(cloneSchema(target), defs, inFlight)
		*placeholder = *resolved
		delete(inFlight, name)
		return resolved
	}
	s.Properties = inlineRefMap(s.Properties, defs, inFlight)
	s.Items = inlineRefs(s.Items, defs, inFlight)
	s.AnyOf = inlineRefSlice(s.AnyOf, defs, inFlight)
	s.OneOf = inlineRefSlice(s.OneOf, defs, inFlight)
	s.AllOf = inlineRefSlice(s.AllOf, defs, inFlight)
	s.Not = inlineRefs(s.Not, defs, inFlight)
	if sub, ok := s.AdditionalProperties.(*Schema); ok {
		s.AdditionalProperties = inlineRefs(sub, defs, inFlight)
	}
	return s
}

func inlineRefMap(m map[string]*Schema, defs map[string]*Schema, inFlight map[string]*Schema) map[string]*Schema {
	if m == nil {
		return nil
	}
	out := make(map[string]*Schema, len(m))
	for k, v := range m {
		out[k] = inlineRefs(v, defs, inFlight)
	}
	return out
}

func inlineRefSlice(in []*Schema, defs map[string]*Schema, inFlight map[string]*Schema) []*Schema {
	if in == nil {
		return nil
	}
	out := make([]*Schema, len(in))
	for i, v := range in {
		out[i] = inlineRefs(v, defs, inFlight)
	}
	return out
}

func refName(ref string) string {
	const prefix = "#/$defs/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

func cloneSchema(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Properties != nil {
		cp.Properties = make(map[string]*Schema, len(s.Properties))
		for k, v := range s.Properties {
			cp.Properties[k] = cloneSchema(v)
		}
	}
	cp.Items = cloneSchema(s.Items)
	cp.AnyOf = cloneSlice(s.AnyOf)
	cp.OneOf = cloneSlice(s.OneOf)
	cp.AllOf = cloneSlice(s.AllOf)
	cp.Not = cloneSchema(s.Not)
	return &cp
}

func cloneSlice(in []*Schema) []*Schema {
	if in == nil {
		return nil
	}
	out := make([]*Schema, len(in))
	for i, v := range in {
		out[i] = cloneSchema(v)
	}
	return out
}

// stripTitles recursively removes title keys, optionally
// synthesising a description from the title first.
func stripTitles(s *Schema, descFromTitle bool) {
	if s == nil {
		return
	}
	if s.Title != "" {
		if descFromTitle && s.Description == "" {
			s.Description = s.Title
		}
		s.Title = ""
	}
	for _, v := range s.Properties {
		stripTitles(v, descFromTitle)
	}
	stripTitles(s.Items, descFromTitle)
	for _, v := range s.AnyOf {
		stripTitles(v, descFromTitle)
	}
	for _, v := range s.OneOf {
		stripTitles(v, descFromTitle)
	}
	for _, v := range s.AllOf {
		stripTitles(v, descFromTitle)
	}
	stripTitles(s.Not, descFromTitle)
}

// collapseSingleUnion collapses a single-element anyOf/oneOf into its inner
// schema, recursively.
func collapseSingleUnion(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	for _, v := range s.Properties {
		*v = *collapseSingleUnion(v)
	}
	s.Items = collapseSingleUnion(s.Items)
	s.AnyOf = collapseUnionSlice(s.AnyOf)
	s.OneOf = collapseUnionSlice(s.OneOf)
	s.AllOf = collapseUnionSlice(s.AllOf)

	if len(s.AnyOf) == 1 {
		return mergeCollapsed(s, s.AnyOf[0])
	}
	if len(s.OneOf) == 1 {
		return mergeCollapsed(s, s.OneOf[0])
	}
	return s
}

func collapseUnionSlice(in []*Schema) []*Schema {
	for i, v := range in {
		in[i] = collapseSingleUnion(v)
	}
	return in
}

// mergeCollapsed merges the collapsed inner schema into outer, keeping
// outer's description if the inner has none.
func mergeCollapsed(outer, inner *Schema) *Schema {
	merged := cloneSchema(inner)
	if merged.Description == "" {
		merged.Description = outer.Description
	}
	return merged
}

// applyDefaultPolicy either strips `default` annotations or moves them to
// the end of their containing object's properties insertion order.
func applyDefaultPolicy(s *Schema, strip bool) {
	if s == nil {
		return
	}
	if strip {
		stripDefaults(s)
		return
	}
	moveDefaultsLast(s)
}

func stripDefaults(s *Schema) {
	s.HasDefault = false
	s.Default = nil
	for _, v := range s.Properties {
		stripDefaults(v)
	}
	stripDefaults(s.Items)
	for _, v := range s.AnyOf {
		stripDefaults(v)
	}
	for _, v := range s.OneOf {
		stripDefaults(v)
	}
	for _, v := range s.AllOf {
		stripDefaults(v)
	}
	stripDefaults(s.Not)
}

func moveDefaultsLast(s *Schema) {
	if s == nil || s.Type != "object" {
		return
	}
	var withDefault, withoutDefault []string
	for _, name := range s.PropertyOrder {
		if prop, ok := s.Properties[name]; ok && prop.HasDefault {
			withDefault = append(withDefault, name)
		} else {
			withoutDefault = append(withoutDefault, name)
		}
	}
	s.PropertyOrder = append(withoutDefault, withDefault...)
	for _, v := range s.Properties {
		applyDefaultPolicy(v, false)
	}
}

// forceRequired forces every property into `required`, recursively.
func forceRequired(s *Schema) {
	if s == nil {
		return
	}
	if s.Type == "object" && len(s.Properties) > 0 {
		s.Required = append([]string(nil), s.PropertyOrder...)
	}
	for _, v := range s.Properties {
		forceRequired(v)
	}
	forceRequired(s.Items)
	for _, v := range s.AnyOf {
		forceRequired(v)
	}
	for _, v := range s.OneOf {
		forceRequired(v)
	}
	for _, v := range s.AllOf {
		forceRequired(v)
	}
}

// restrictRootKeys marks s so ToMap restricts its root-level emission to
// rootAllowedKeys plus extra, per normalisation rule 2. Nested schemas are
// untouched: the restriction applies only at the document root.
func restrictRootKeys(s *Schema, extra []string) {
	s.RootRestricted = true
	s.ExtraRootKeys = extra
}

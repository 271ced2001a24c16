package schema

// Options holds the schema normalisation policy flags.
type Options struct {
	// DescriptionFromTitle synthesises a description from a title before
	// titles are stripped.
	DescriptionFromTitle bool
	// CollapseSingleUnion collapses a single-element anyOf/oneOf into its
	// inner schema.
	CollapseSingleUnion bool
	// StripDefaults removes `default` annotations instead of moving them to
	// the end of their containing object's properties. Defaults to true via
	// DefaultOptions.
	StripDefaults bool
	// ForceRequired forces every property into `required`.
	ForceRequired bool
	// ExtraRootKeys are additional caller-supplied keys allowed at the root
	// in addition to the fixed allowed set.
	ExtraRootKeys []string
	// WrapKey names the synthetic property used by the root-wrapping rule.
	// Defaults to "output".
	WrapKey string
}

// Option mutates an Options value.
type Option func(*Options)

// DefaultOptions returns the compiler's default policy: defaults are
// stripped, single-element unions are not collapsed, titles are dropped
// without synthesising descriptions, nothing is forced required, and the
// wrap key is "output".
func DefaultOptions() Options {
	return Options{
		StripDefaults: true,
		WrapKey:       "output",
	}
}

func WithDescriptionFromTitle(v bool) Option { return func(o *Options) { o.DescriptionFromTitle = v } }
func WithCollapseSingleUnion(v bool) Option  { return func(o *Options) { o.CollapseSingleUnion = v } }
func WithStripDefaults(v bool) Option        { return func(o *Options) { o.StripDefaults = v } }
func WithForceRequired(v bool) Option        { return func(o *Options) { o.ForceRequired = v } }
func WithExtraRootKeys(keys ...string) Option {
	return func(o *Options) { o.ExtraRootKeys = append(o.ExtraRootKeys, keys...) }
}
func WithWrapKey(key string) Option {
	return func(o *Options) {
		if key != "" {
			o.WrapKey = key
		}
	}
}

func resolveOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

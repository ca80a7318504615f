package boxon

// Converter is a pure bidirectional mapping between a directive's wire
// representation and a field's user-facing Go value (spec.md §3
// "Binding decoration"). Implementations must be side-effect free: the
// interpreter may call ToWire twice for the same value (no hidden mutation,
// spec.md §8) and expects identical results.
type Converter interface {
	// ToUser maps a decoded wire value to the user-facing value stored in the field.
	ToUser(wire any) (any, error)
	// ToWire maps a user-facing field value back to the wire representation.
	ToWire(user any) (any, error)
}

// identityConverter is the default converter used when a binding names none.
type identityConverter struct{}

func (identityConverter) ToUser(wire any) (any, error) { return wire, nil }
func (identityConverter) ToWire(user any) (any, error) { return user, nil }

// Validator is a predicate over the user-facing value, applied symmetrically
// after decode and before encode (spec.md §3, §4.D). A non-nil error fails
// the frame with KindValidationError.
type Validator interface {
	Validate(user any) error
}

// ValidatorFunc adapts a plain function to the Validator interface.
type ValidatorFunc func(user any) error

func (f ValidatorFunc) Validate(user any) error { return f(user) }

// PostProcessor transforms a field's decoded value after the whole frame has
// been parsed, or transforms it back before encoding begins (spec.md §3
// "post_processed_fields", §4.E). Unlike Converter, a post-processor may
// consult sibling fields already present on the object (e.g. deriving a
// human string from a raw code).
type PostProcessor interface {
	// PostDecode runs once decoding of the whole frame is complete.
	PostDecode(self any) (any, error)
	// PreEncode runs before the field is written, the encode-side mirror.
	PreEncode(self any) (any, error)
}

// converterRegistry holds named converters/validators/post-processors
// registered through CoreBuilder, resolved by Binding at decode/encode time.
type converterRegistry struct {
	converters     map[string]Converter
	validators     map[string]Validator
	postProcessors map[string]PostProcessor
}

func newConverterRegistry() *converterRegistry {
	return &converterRegistry{
		converters:     map[string]Converter{},
		validators:     map[string]Validator{},
		postProcessors: map[string]PostProcessor{},
	}
}

func (r *converterRegistry) converter(name string) (Converter, error) {
	if name == "" {
		return identityConverter{}, nil
	}
	c, ok := r.converters[name]
	if !ok {
		return nil, newErr(KindBadType, "unknown converter "+name)
	}
	return c, nil
}

func (r *converterRegistry) validator(name string) (Validator, bool) {
	if name == "" {
		return nil, false
	}
	v, ok := r.validators[name]
	return v, ok
}

func (r *converterRegistry) postProcessor(name string) (PostProcessor, bool) {
	if name == "" {
		return nil, false
	}
	p, ok := r.postProcessors[name]
	return p, ok
}

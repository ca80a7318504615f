package boxon

// CodecRegistry maps a DirectiveKind to the Codec implementation that reads
// and writes it (spec.md §4.C). Registration happens at build time; once a
// Core is built the registry is treated as immutable and safely shared
// across concurrent decode/encode calls, exactly like the teacher's
// decoder/encoder instruction tables which are built once and never mutated
// after NewEncoder/NewDecoder returns.
type CodecRegistry struct {
	codecs map[DirectiveKind]Codec
}

// NewCodecRegistry returns an empty registry; CoreBuilder populates it with
// the built-in codecs plus any user-supplied overrides.
func NewCodecRegistry() *CodecRegistry {
	return &CodecRegistry{codecs: map[DirectiveKind]Codec{}}
}

// Register adds a codec for its Kind(). If multiple codecs claim the same
// kind, the last one registered wins (spec.md §4.C).
func (r *CodecRegistry) Register(c Codec) {
	r.codecs[c.Kind()] = c
}

// Has reports whether a codec is registered for kind.
func (r *CodecRegistry) Has(kind DirectiveKind) bool {
	_, ok := r.codecs[kind]
	return ok
}

// Get returns the codec registered for kind.
func (r *CodecRegistry) Get(kind DirectiveKind) (Codec, bool) {
	c, ok := r.codecs[kind]
	return c, ok
}

// inject gives every registered codec a back-reference to the evaluator,
// interpreter, and charset registry it needs to recurse, evaluate
// sizes/conditions, or decode/encode text (spec.md §4.C "Injection").
// Codecs that don't need a given collaborator simply don't implement the
// corresponding optional interface.
func (r *CodecRegistry) inject(eval *Evaluator, interp *Interpreter, charsets *charsetRegistry) {
	for _, c := range r.codecs {
		if ne, ok := c.(needsEvaluator); ok {
			ne.injectEvaluator(eval)
		}
		if ni, ok := c.(needsInterpreter); ok {
			ni.injectInterpreter(interp)
		}
		if nc, ok := c.(needsCharsets); ok {
			nc.injectCharsets(charsets)
		}
	}
}

// needsEvaluator is implemented by codecs that must evaluate size/condition
// expressions (arbitrary integers, bitsets, arrays, fixed strings, skips,
// evaluated fields).
type needsEvaluator interface {
	injectEvaluator(*Evaluator)
}

// needsInterpreter is implemented by codecs that recurse into nested
// templates (object, array-object).
type needsInterpreter interface {
	injectInterpreter(*Interpreter)
}

// needsCharsets is implemented by codecs that decode/encode text
// (string-fixed, string-terminated).
type needsCharsets interface {
	injectCharsets(*charsetRegistry)
}

// registerBuiltinCodecs populates a registry with boxon's default codec set
// (spec.md §3's directive table, one codec per kind).
func registerBuiltinCodecs(r *CodecRegistry) {
	r.Register(&integerCodec{})
	r.Register(&arbitraryIntegerCodec{})
	r.Register(&floatCodec{kind: KindFloat})
	r.Register(&floatCodec{kind: KindDouble})
	r.Register(&bitsetCodec{})
	r.Register(&arrayPrimitiveCodec{})
	r.Register(&arrayObjectCodec{})
	r.Register(&objectCodec{})
	r.Register(&stringFixedCodec{})
	r.Register(&stringTerminatedCodec{})
	r.Register(&skipCodec{})
	r.Register(&skipUntilCodec{})
	r.Register(&checksumCodec{})
	r.Register(&evaluatedCodec{})
}

package boxon

import (
	"reflect"
	"sync"
)

// Core is the immutable, built runtime for a set of registered message
// templates (spec.md §2 "Core"): codec registry, converters, checksum
// algorithms, the expression evaluator, and the resolver that maps a
// frame's magic header to the template that describes it. A Core is safe
// for concurrent Parse/Compose calls once CoreBuilder.Build returns.
type Core struct {
	codecs      *CodecRegistry
	converters  *converterRegistry
	checksums   *checksumRegistry
	charsets    *charsetRegistry
	evaluator   *Evaluator
	interp      *Interpreter
	resolver    *Resolver
	templates   sync.Map // reflect.Type -> *Template
	typesByName map[string]reflect.Type
	namesByType map[reflect.Type]string
	context     map[string]any
}

func (c *Core) templateFor(t reflect.Type) (*Template, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := c.templates.Load(t); ok {
		return cached.(*Template), nil
	}
	tmpl, err := compileTemplate(t)
	if err != nil {
		return nil, err
	}
	actual, _ := c.templates.LoadOrStore(t, tmpl)
	return actual.(*Template), nil
}

func (c *Core) typeByName(name string) (reflect.Type, error) {
	t, ok := c.typesByName[name]
	if !ok {
		return nil, newErr(KindNoTemplate, "unregistered type "+name)
	}
	return t, nil
}

func (c *Core) nameByType(t reflect.Type) string {
	return c.namesByType[t]
}

// CoreBuilder assembles a Core (spec.md §2 "CoreBuilder"): the single
// configuration surface for boxon, mirroring the teacher's pattern of a
// builder that accumulates options and produces an immutable runtime via
// Build. There is no separate flag/env-var configuration layer - every
// behavior a Core needs is registered explicitly through this builder.
type CoreBuilder struct {
	codecs      *CodecRegistry
	converters  *converterRegistry
	checksums   *checksumRegistry
	charsets    *charsetRegistry
	context     map[string]any
	typesByName map[string]reflect.Type
	namesByType map[reflect.Type]string
	roots       []rootRegistration
}

type rootRegistration struct {
	header Header
	zero   any
}

// NewCoreBuilder returns a builder pre-populated with boxon's built-in
// codecs (spec.md §4.C); everything else starts empty.
func NewCoreBuilder() *CoreBuilder {
	codecs := NewCodecRegistry()
	registerBuiltinCodecs(codecs)
	return &CoreBuilder{
		codecs:      codecs,
		converters:  newConverterRegistry(),
		checksums:   newChecksumRegistry(),
		charsets:    newCharsetRegistry(),
		context:     map[string]any{},
		typesByName: map[string]reflect.Type{},
		namesByType: map[reflect.Type]string{},
	}
}

// Context registers a named value (or callable) reachable from expressions
// as a bare identifier (spec.md §4.B "context").
func (b *CoreBuilder) Context(name string, value any) *CoreBuilder {
	b.context[name] = value
	return b
}

// Converter registers a named Converter for use via `convert=name` /
// `convert-if=cond:name` binding options.
func (b *CoreBuilder) Converter(name string, c Converter) *CoreBuilder {
	b.converters.converters[name] = c
	return b
}

// Validator registers a named Validator for use via `validate=name`.
func (b *CoreBuilder) Validator(name string, v Validator) *CoreBuilder {
	b.converters.validators[name] = v
	return b
}

// PostProcessor registers a named PostProcessor for use via `post=name`.
func (b *CoreBuilder) PostProcessor(name string, p PostProcessor) *CoreBuilder {
	b.converters.postProcessors[name] = p
	return b
}

// Checksummer registers a named checksum algorithm for use by `checksum(...)` directives.
func (b *CoreBuilder) Checksummer(name string, c Checksummer) *CoreBuilder {
	b.checksums.algorithms[name] = c
	return b
}

// Codec overrides or adds a codec for a DirectiveKind (spec.md §4.C "last
// registered wins").
func (b *CoreBuilder) Codec(c Codec) *CoreBuilder {
	b.codecs.Register(c)
	return b
}

// Charset registers a named charset, overriding/extending the built-ins
// (spec.md §4 charset abstraction). Scoped to this builder's eventual Core,
// not shared with any other Core built concurrently.
func (b *CoreBuilder) Charset(cs Charset) *CoreBuilder {
	b.charsets.register(cs)
	return b
}

// Type registers a concrete struct type under name, making it a legal
// target for a polymorphic `object`/`array-object` Alternative.TypeName or
// an explicit TypeName override (spec.md §5 "Polymorphism").
func (b *CoreBuilder) Type(name string, zero any) *CoreBuilder {
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b.typesByName[name] = t
	b.namesByType[t] = name
	return b
}

// Register declares zero's type as a root (frame-level) template
// identified on the wire by h's magic header (spec.md §7).
func (b *CoreBuilder) Register(h Header, zero any) *CoreBuilder {
	b.roots = append(b.roots, rootRegistration{header: h, zero: zero})
	return b
}

// Build compiles every registered root template, wires the evaluator and
// interpreter into the codec registry, and returns an immutable Core.
func (b *CoreBuilder) Build() (*Core, error) {
	eval, err := newEvaluator(b.context)
	if err != nil {
		return nil, err
	}

	core := &Core{
		codecs:      b.codecs,
		converters:  b.converters,
		checksums:   b.checksums,
		charsets:    b.charsets,
		evaluator:   eval,
		resolver:    NewResolver(),
		typesByName: b.typesByName,
		namesByType: b.namesByType,
		context:     b.context,
	}
	core.interp = newInterpreter(core)
	core.codecs.inject(eval, core.interp, core.charsets)

	for _, rr := range b.roots {
		t := reflect.TypeOf(rr.zero)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		tmpl, err := compileTemplate(t)
		if err != nil {
			return nil, err
		}
		h := rr.header
		tmpl.Header = &h
		core.templates.Store(t, tmpl)
		if err := core.resolver.Register(h, tmpl); err != nil {
			return nil, err
		}
	}

	return core, nil
}

// Frame is one message recovered from a Parser.Parse call: either a
// successfully decoded Value, or an Err describing why this byte range
// could not be decoded (spec.md §7 "Parser continues past frame-fatal
// errors").
type Frame struct {
	Value      any
	Err        *Error
	Start, End int
}

// Parser scans a byte stream for frames matching any of a Core's
// registered headers, decoding each and recovering by re-scanning for the
// next recognizable header when one fails (spec.md §7).
type Parser struct {
	core *Core
}

func NewParser(core *Core) *Parser {
	return &Parser{core: core}
}

// Parse decodes every frame found in data, continuing past errors.
func (p *Parser) Parse(data []byte) []Frame {
	var frames []Frame
	r := NewReader(data)
	peekLen := p.core.resolver.maxHeaderLen()

	for r.BytesLeft() > 0 {
		start := r.Position()
		tmpl, matchLen, ok := p.core.resolver.MatchAt(r.PeekBytes(peekLen))
		if !ok {
			next := p.core.resolver.FindNextFrameStart(data[start:])
			noTemplate := newErrAt(KindNoTemplate, start, "no registered template matches")
			if next < 0 {
				frames = append(frames, Frame{Err: noTemplate, Start: start, End: len(data)})
				break
			}
			frames = append(frames, Frame{Err: noTemplate, Start: start, End: start + next})
			r.SetPosition(start + next)
			continue
		}

		if _, err := r.ReadBytes(matchLen); err != nil {
			frames = append(frames, Frame{Err: toBoxonError(err), Start: start, End: r.Position()})
			break
		}

		value, err := p.parseOne(r, tmpl, start)
		frames = append(frames, Frame{Value: value, Err: toBoxonError(err), Start: start, End: r.Position()})
		if err != nil {
			next := p.core.resolver.FindNextFrameStart(data[start:])
			if next < 0 {
				break
			}
			r.SetPosition(start + next)
		}
	}
	return frames
}

func (p *Parser) parseOne(r *Reader, tmpl *Template, frameStart int) (any, error) {
	rootVal := reflect.New(tmpl.Type).Elem()
	scope := &Scope{
		Root:      rootVal.Addr().Interface(),
		Self:      rootVal.Addr().Interface(),
		SelfValue: rootVal,
		Context:   p.core.context,
	}

	for _, tf := range tmpl.Fields {
		fv := rootVal.Field(tf.FieldIndex)
		v, ok, err := decodeField(p.core, r, tf.Binding, scope, fv.Type())
		if err != nil {
			return rootVal.Interface(), err
		}
		if ok {
			fv.Set(v)
		}
	}

	if err := p.core.interp.runPostDecode(tmpl, rootVal); err != nil {
		return rootVal.Interface(), err
	}

	if tmpl.Header.End != nil {
		if _, err := r.ReadBytes(len(tmpl.Header.End)); err != nil {
			return rootVal.Interface(), err
		}
	}

	if tmpl.ChecksumIndex >= 0 {
		if err := p.core.interp.verifyChecksum(tmpl, rootVal, r, frameStart); err != nil {
			return rootVal.Interface(), err
		}
	}

	return rootVal.Interface(), nil
}

func toBoxonError(err error) *Error {
	if err == nil {
		return nil
	}
	if be, ok := err.(*Error); ok {
		return be
	}
	return wrapErrAt(KindBadType, -1, "decode failed", err)
}

// Composer encodes a registered root template type back to its wire
// representation (spec.md §7 "Encode").
type Composer struct {
	core *Core
}

func NewComposer(core *Core) *Composer {
	return &Composer{core: core}
}

// Compose writes value's frame, including its header and checksum.
func (c *Composer) Compose(value any) ([]byte, error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if !rv.CanAddr() {
		addressable := reflect.New(rv.Type()).Elem()
		addressable.Set(rv)
		rv = addressable
	}

	tmpl, err := c.core.templateFor(rv.Type())
	if err != nil {
		return nil, err
	}
	if tmpl.Header == nil {
		return nil, newErr(KindNoHeader, "type is not registered as a root template: "+rv.Type().String())
	}

	w := NewWriter()
	w.WriteBytes(tmpl.Header.Start)

	ctx := map[string]any{}
	for k, v := range c.core.context {
		ctx[k] = v
	}
	scope := &Scope{Root: rv.Addr().Interface(), Self: rv.Addr().Interface(), SelfValue: rv, Context: ctx}

	for _, tf := range tmpl.Fields {
		fv := rv.Field(tf.FieldIndex)
		if tf.Binding.PostProcessName != "" {
			if pp, ok := c.core.converters.postProcessor(tf.Binding.PostProcessName); ok {
				pre, err := pp.PreEncode(rv.Addr().Interface())
				if err == nil {
					if cv, cerr := coerceTo(pre, fv.Type()); cerr == nil {
						fv = cv
					}
				}
			}
		}
		if err := encodeField(c.core, w, tf.Binding, scope, fv); err != nil {
			return nil, err
		}
	}

	if len(tmpl.Header.End) > 0 {
		w.WriteBytes(tmpl.Header.End)
	}

	if tmpl.ChecksumIndex >= 0 {
		if err := c.core.interp.patchChecksum(w, tmpl, scope, 0); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return w.Bytes(), nil
}

// Describe returns a human-readable summary of a registered root
// template's field layout, useful for debugging and documentation (spec.md
// §7's describer hook): a line with the type name, then one line per field
// naming the field and its directive kind. Conditions, converters,
// validators and directive parameters are not listed.
func (c *Core) Describe(zero any) (string, error) {
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	tmpl, err := c.templateFor(t)
	if err != nil {
		return "", err
	}

	var sb []byte
	sb = append(sb, t.String()...)
	sb = append(sb, ":\n"...)
	for _, tf := range tmpl.Fields {
		f := t.Field(tf.FieldIndex)
		sb = append(sb, "  "...)
		sb = append(sb, f.Name...)
		sb = append(sb, " "...)
		sb = append(sb, tf.Binding.Directive.Kind.String()...)
		sb = append(sb, "\n"...)
	}
	return string(sb), nil
}

package boxon

import "reflect"

// Interpreter ties the codec registry, evaluator and type registry together
// to recurse into nested/polymorphic templates (spec.md §4.E) and to run
// the checksum verify/patch step that needs a whole frame's span. It's
// built once per Core and is safe for concurrent use: all per-call state
// lives on the Reader/Writer/Scope passed in, never on the Interpreter.
type Interpreter struct {
	core *Core
}

func newInterpreter(core *Core) *Interpreter {
	return &Interpreter{core: core}
}

// decodeObject decodes one nested object value for an "object" or
// "array-object" directive, resolving polymorphism first when the
// directive carries Choices.
func (ip *Interpreter) decodeObject(r *Reader, fieldType reflect.Type, dir Directive, scope *Scope) (reflect.Value, error) {
	targetType, prefix, err := ip.resolveTargetType(r, fieldType, dir, scope)
	if err != nil {
		return reflect.Value{}, err
	}

	tmpl, err := ip.core.templateFor(targetType)
	if err != nil {
		return reflect.Value{}, err
	}

	newVal := reflect.New(targetType).Elem()
	child := scope.child(newVal.Addr().Interface(), newVal)
	// Only this directive's own prefix (if it read one via Choices) is
	// visible to the resolved type's fields - an ancestor's prefix is not
	// inherited across unrelated nesting (see Scope.child's doc comment).
	if dir.Choices != nil {
		child.ChoicePrefix = prefix
	}

	for _, tf := range tmpl.Fields {
		fv := newVal.Field(tf.FieldIndex)
		v, ok, err := decodeField(ip.core, r, tf.Binding, child, fv.Type())
		if err != nil {
			return reflect.Value{}, err
		}
		if ok {
			fv.Set(v)
		}
	}
	if err := ip.runPostDecode(tmpl, newVal); err != nil {
		return reflect.Value{}, err
	}

	return coercedObjectResult(newVal, fieldType), nil
}

// encodeObject mirrors decodeObject.
func (ip *Interpreter) encodeObject(w *Writer, v reflect.Value, dir Directive, scope *Scope) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.CanAddr() {
		addressable := reflect.New(v.Type()).Elem()
		addressable.Set(v)
		v = addressable
	}

	tmpl, err := ip.core.templateFor(v.Type())
	if err != nil {
		return err
	}

	child := scope.child(v.Addr().Interface(), v)

	if dir.Choices != nil {
		prefix, alt, err := ip.resolveAlternativeForEncode(v, dir.Choices)
		if err != nil {
			return err
		}
		w.WriteBits(prefix, dir.Choices.PrefixSize, dir.Choices.PrefixOrder)
		child.ChoicePrefix = &prefix
		_ = alt
	}

	for _, tf := range tmpl.Fields {
		fv := v.Field(tf.FieldIndex)
		if tf.Binding.PostProcessName != "" {
			if pp, ok := ip.core.converters.postProcessor(tf.Binding.PostProcessName); ok {
				pre, err := pp.PreEncode(v.Addr().Interface())
				if err == nil {
					if cv, cerr := coerceTo(pre, fv.Type()); cerr == nil {
						fv = cv
					}
				}
			}
		}
		if err := encodeField(ip.core, w, tf.Binding, child, fv); err != nil {
			return err
		}
	}
	return nil
}

// resolveTargetType determines which concrete struct type backs an object
// directive: a fixed TypeName, a Choices-driven dispatch, or (absent both)
// the field's own declared type.
func (ip *Interpreter) resolveTargetType(r *Reader, fieldType reflect.Type, dir Directive, scope *Scope) (reflect.Type, *uint64, error) {
	baseType := fieldType
	for baseType.Kind() == reflect.Pointer {
		baseType = baseType.Elem()
	}

	if dir.Choices == nil {
		if dir.TypeName == "" {
			return baseType, nil, nil
		}
		t, err := ip.core.typeByName(dir.TypeName)
		return t, nil, err
	}

	prefix, err := r.ReadBits(dir.Choices.PrefixSize, dir.Choices.PrefixOrder)
	if err != nil {
		return nil, nil, err
	}
	probe := scope.child(scope.Self, scope.SelfValue)
	probe.ChoicePrefix = &prefix

	typeName, err := resolveAlternative(ip.core, dir.Choices, probe, prefix)
	if err != nil {
		return nil, nil, err
	}
	t, err := ip.core.typeByName(typeName)
	return t, &prefix, err
}

// resolveAlternative picks the first matching Alternative: prefix-value
// shorthand compared directly, otherwise its Condition evaluated against
// scope, falling back to Choices.Default.
func resolveAlternative(core *Core, ch *Choices, scope *Scope, prefix uint64) (string, error) {
	for _, alt := range ch.Alternatives {
		if alt.PrefixValue != nil {
			if *alt.PrefixValue == prefix {
				return alt.TypeName, nil
			}
			continue
		}
		ok, err := core.evaluator.EvalBoolean(alt.Condition, scope)
		if err != nil {
			return "", err
		}
		if ok {
			return alt.TypeName, nil
		}
	}
	if ch.Default != "" {
		return ch.Default, nil
	}
	return "", newErr(KindNoTemplate, "no matching alternative for choice prefix")
}

// resolveAlternativeForEncode finds the Alternative whose registered type
// matches v's concrete type and returns the prefix value to write. Only
// prefix-value-shorthand alternatives can round-trip through encode: a
// condition-only alternative has no canonical prefix integer to re-derive
// from a decoded value, so encoding against one fails explicitly rather
// than guessing (recorded as an Open Question resolution in DESIGN.md).
func (ip *Interpreter) resolveAlternativeForEncode(v reflect.Value, ch *Choices) (uint64, *Alternative, error) {
	name := ip.core.nameByType(v.Type())
	for i := range ch.Alternatives {
		alt := &ch.Alternatives[i]
		if alt.TypeName != name {
			continue
		}
		if alt.PrefixValue == nil {
			return 0, nil, newErr(KindBadType, "alternative for "+name+" has no fixed prefix value to encode")
		}
		return *alt.PrefixValue, alt, nil
	}
	return 0, nil, newErr(KindNoTemplate, "no alternative registered for type "+name)
}

// runPostDecode applies every field's post-processor once decoding of the
// whole object is complete (spec.md §4.E "Post-processing").
func (ip *Interpreter) runPostDecode(tmpl *Template, v reflect.Value) error {
	for _, tf := range tmpl.Fields {
		if tf.Binding.PostProcessName == "" {
			continue
		}
		pp, ok := ip.core.converters.postProcessor(tf.Binding.PostProcessName)
		if !ok {
			continue
		}
		fv := v.Field(tf.FieldIndex)
		res, err := pp.PostDecode(v.Addr().Interface())
		if err != nil {
			return wrapErrAt(KindValidationError, -1, "post-process", err)
		}
		nv, err := coerceTo(res, fv.Type())
		if err != nil {
			return wrapErrAt(KindBadType, -1, "post-process result", err)
		}
		fv.Set(nv)
	}
	return nil
}

// coercedObjectResult addresses/dereferences newVal to match fieldType
// (plain struct vs pointer-to-struct fields are both legal bindings).
func coercedObjectResult(newVal reflect.Value, fieldType reflect.Type) reflect.Value {
	if fieldType.Kind() == reflect.Pointer {
		return newVal.Addr()
	}
	return newVal
}

// verifyChecksum recomputes a decoded frame's checksum over
// [frameStart+skipStart, frameEnd-skipEnd) and compares it against the
// value already decoded into the template's checksum field (spec.md §6).
func (ip *Interpreter) verifyChecksum(tmpl *Template, rootVal reflect.Value, r *Reader, frameStart int) error {
	tf := tmpl.Fields[tmpl.ChecksumIndex]
	dir := tf.Binding.Directive

	algo, ok := ip.core.checksums.get(dir.Algorithm)
	if !ok {
		return newErr(KindBadType, "unregistered checksum algorithm "+dir.Algorithm)
	}

	scope := &Scope{Root: rootVal.Addr().Interface(), Self: rootVal.Addr().Interface(), SelfValue: rootVal, Context: ip.core.context}
	start, end, err := ip.checksumSpan(dir, scope, frameStart, r.Position())
	if err != nil {
		return err
	}

	computed := algo.Calculate(r.Array(), start, end, dir.Initial)
	decoded := rootVal.Field(tf.FieldIndex).Uint()
	if computed != decoded {
		return newErrAt(KindChecksumMismatch, r.Position(), "checksum mismatch")
	}
	return nil
}

// patchChecksum computes the real checksum over a just-encoded frame and
// backfills the placeholder checksumCodec.Encode reserved.
func (ip *Interpreter) patchChecksum(w *Writer, tmpl *Template, scope *Scope, frameStart int) error {
	tf := tmpl.Fields[tmpl.ChecksumIndex]
	dir := tf.Binding.Directive

	algo, ok := ip.core.checksums.get(dir.Algorithm)
	if !ok {
		return newErr(KindBadType, "unregistered checksum algorithm "+dir.Algorithm)
	}

	offsetAny, ok := scope.Context[checksumOffsetKey]
	if !ok {
		return newErr(KindBadType, "checksum placeholder was never reserved")
	}
	offset := offsetAny.(int)

	start, end, err := ip.checksumSpan(dir, scope, frameStart, w.Position())
	if err != nil {
		return err
	}

	computed := algo.Calculate(w.Bytes(), start, end, dir.Initial)
	w.PatchUint(offset, dir.Width/8, computed, dir.Order)
	return nil
}

func (ip *Interpreter) checksumSpan(dir Directive, scope *Scope, frameStart, frameEnd int) (int, int, error) {
	skipStart := 0
	if dir.SkipStartExp != "" {
		n, err := ip.core.evaluator.EvalSize(dir.SkipStartExp, scope)
		if err != nil {
			return 0, 0, err
		}
		skipStart = n
	}
	skipEnd := 0
	if dir.SkipEndExp != "" {
		n, err := ip.core.evaluator.EvalSize(dir.SkipEndExp, scope)
		if err != nil {
			return 0, 0, err
		}
		skipEnd = n
	}
	// parseChecksumDirective already rejects a skip_end literal smaller than
	// the checksum's own byte width at compile time; a dynamic skip_end
	// expression can only be checked here, once it has actually been
	// evaluated against a concrete frame.
	if skipEnd < dir.Width/8 {
		return 0, 0, newErrAt(KindBadType, frameEnd, "checksum skip_end must be >= width_of_checksum_in_bytes")
	}
	start := frameStart + skipStart
	end := frameEnd - skipEnd
	if start < 0 || end < start {
		return 0, 0, newErrAt(KindOutOfRange, frameEnd, "checksum span out of range")
	}
	return start, end, nil
}

package boxon

import (
	"fmt"
	"reflect"
)

// Scope is the explicit, stack-discipline context a decode or encode call
// carries through recursion (spec.md §3 "Context / scope", §9 "Scope as an
// explicit stack"). Every nested template push binds a new Self and pops
// back to the parent's on exit, including on error paths.
type Scope struct {
	Root         any
	Self         any
	SelfValue    reflect.Value // addressable value backing Self, used for field assignment during decode
	ChoicePrefix *uint64
	Context      map[string]any
	Parent       *Scope
}

// child returns a new Scope for a nested template, rebinding Self while
// keeping Root and Context from the outer scope (choice-prefix resets:
// spec.md §3 "choice-prefix: last prefix read (if any)" is scoped to the
// directive that read it, not inherited across unrelated nesting).
func (s *Scope) child(self any, selfValue reflect.Value) *Scope {
	return &Scope{
		Root:      s.Root,
		Self:      self,
		SelfValue: selfValue,
		Context:   s.Context,
		Parent:    s,
	}
}

// Codec implements the per-directive-kind decode/encode logic (spec.md
// §4.D). The decode pipeline's condition/converter/validator wrapping is
// applied uniformly by decodeField/encodeField in this file, not by
// individual codecs - codecs only ever see the raw Directive and produce or
// consume a wire-shaped reflect.Value.
type Codec interface {
	Kind() DirectiveKind
	Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error)
	Encode(w *Writer, dir Directive, scope *Scope, v reflect.Value) error
}

// decodeField runs the full per-field decode pipeline shared by every
// directive kind (spec.md §4.D "Decode pipeline"):
//  1. condition check (absent -> no bytes consumed)
//  2. raw wire read via the registered codec
//  3. converter selection (choices first, else default)
//  4. converter application (wire -> user)
//  5. validator application
func decodeField(core *Core, r *Reader, b Binding, scope *Scope, fieldType reflect.Type) (reflect.Value, bool, error) {
	if b.Condition != "" {
		ok, err := core.evaluator.EvalBoolean(b.Condition, scope)
		if err != nil {
			return reflect.Value{}, false, err
		}
		if !ok {
			return reflect.Value{}, false, nil
		}
	}

	codec, ok := core.codecs.Get(b.Directive.Kind)
	if !ok {
		return reflect.Value{}, false, newErr(KindUnknownDirective, b.Directive.Kind.String())
	}

	wireType := wireGoType(b.Directive, fieldType)
	wireVal, err := codec.Decode(r, b.Directive, scope, wireType)
	if err != nil {
		return reflect.Value{}, false, err
	}

	conv, err := selectConverter(core, b, scope)
	if err != nil {
		return reflect.Value{}, false, err
	}

	userAny, err := conv.ToUser(wireVal.Interface())
	if err != nil {
		return reflect.Value{}, false, newErrAt(KindValidationError, r.Position(), "converter: "+err.Error())
	}

	userVal, err := coerceTo(userAny, fieldType)
	if err != nil {
		return reflect.Value{}, false, wrapErrAt(KindBadType, r.Position(), "converted value does not match field type", err)
	}

	if v, ok := core.converters.validator(b.ValidatorName); ok {
		if err := v.Validate(userVal.Interface()); err != nil {
			return reflect.Value{}, false, wrapErrAt(KindValidationError, r.Position(), "validation failed", err)
		}
	}

	return userVal, true, nil
}

// encodeField mirrors decodeField (spec.md §4.D "Encode pipeline").
func encodeField(core *Core, w *Writer, b Binding, scope *Scope, v reflect.Value) error {
	if b.Condition != "" {
		ok, err := core.evaluator.EvalBoolean(b.Condition, scope)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if val, ok := core.converters.validator(b.ValidatorName); ok {
		if err := val.Validate(v.Interface()); err != nil {
			return wrapErrAt(KindValidationError, w.Position(), "validation failed", err)
		}
	}

	conv, err := selectConverter(core, b, scope)
	if err != nil {
		return err
	}

	wireAny, err := conv.ToWire(v.Interface())
	if err != nil {
		return newErrAt(KindValidationError, w.Position(), "converter: "+err.Error())
	}

	wireType := wireGoType(b.Directive, v.Type())
	wireVal, err := coerceTo(wireAny, wireType)
	if err != nil {
		return wrapErrAt(KindBadType, w.Position(), "converted value does not match wire type", err)
	}

	codec, ok := core.codecs.Get(b.Directive.Kind)
	if !ok {
		return newErr(KindUnknownDirective, b.Directive.Kind.String())
	}
	return codec.Encode(w, b.Directive, scope, wireVal)
}

// selectConverter resolves the Binding's converter: the first matching
// ConverterChoices condition, or the default ConverterName, or identity.
func selectConverter(core *Core, b Binding, scope *Scope) (Converter, error) {
	for _, cc := range b.ConverterChoices {
		ok, err := core.evaluator.EvalBoolean(cc.Condition, scope)
		if err != nil {
			return nil, err
		}
		if ok {
			return core.converters.converter(cc.Name)
		}
	}
	return core.converters.converter(b.ConverterName)
}

// coerceTo converts v (typically produced by a user Converter as `any`) to
// the requested Go type when it isn't already assignable, covering the
// common case of numeric widening/narrowing between wire and user types.
func coerceTo(v any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Zero(t), nil
	}
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), t)
}

var (
	typeUint8   = reflect.TypeOf(uint8(0))
	typeUint16  = reflect.TypeOf(uint16(0))
	typeUint32  = reflect.TypeOf(uint32(0))
	typeUint64  = reflect.TypeOf(uint64(0))
	typeInt8    = reflect.TypeOf(int8(0))
	typeInt16   = reflect.TypeOf(int16(0))
	typeInt32   = reflect.TypeOf(int32(0))
	typeInt64   = reflect.TypeOf(int64(0))
	typeFloat32 = reflect.TypeOf(float32(0))
	typeFloat64 = reflect.TypeOf(float64(0))
	typeString  = reflect.TypeOf("")
	typeBytes   = reflect.TypeOf([]byte(nil))
)

// wireGoType returns the natural Go type a directive's codec decodes into
// (and encodes from) before the converter/coerceTo step adapts it to the
// field's actual type. Primitive directives have a wire type fixed by their
// own width/signedness, independent of the Go field they're bound to - that
// independence is exactly what lets a converter map e.g. a raw uint16 onto
// a user-defined Celsius type. Object-shaped directives (object,
// array-object) have no such fixed wire type: their "wire representation"
// is the nested Go struct itself, so they fall back to fieldType.
func wireGoType(dir Directive, fieldType reflect.Type) reflect.Type {
	switch dir.Kind {
	case KindInteger, KindArbitraryInteger:
		if dir.SizeExpr != "" {
			// the width is only known per frame, so use the widest type
			return integerGoType(64, dir.Signed)
		}
		return integerGoType(dir.Width, dir.Signed)
	case KindFloat:
		return typeFloat32
	case KindDouble:
		return typeFloat64
	case KindBitset:
		return typeUint64
	case KindStringFixed, KindStringTerminated:
		return typeString
	default:
		return fieldType
	}
}

// integerGoType returns the natural Go type for a fixed or arbitrary
// integer width, defaulting to the widest type that can hold the width when
// it isn't an exact 8/16/32/64-bit match (arbitrary-width integers).
func integerGoType(width int, signed bool) reflect.Type {
	switch {
	case width <= 8:
		if signed {
			return typeInt8
		}
		return typeUint8
	case width <= 16:
		if signed {
			return typeInt16
		}
		return typeUint16
	case width <= 32:
		if signed {
			return typeInt32
		}
		return typeUint32
	default:
		if signed {
			return typeInt64
		}
		return typeUint64
	}
}

package boxon

import "reflect"

// integerCodec handles fixed-width 8/16/32/64-bit integers (spec.md §3
// "integer"): width is taken directly from Directive.Width, byte order from
// Directive.Order.
type integerCodec struct{}

func (integerCodec) Kind() DirectiveKind { return KindInteger }

func (integerCodec) Decode(r *Reader, dir Directive, _ *Scope, fieldType reflect.Type) (reflect.Value, error) {
	v, err := r.ReadBigInt(dir.Width, dir.Order, dir.Signed)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v).Convert(fieldType), nil
}

func (integerCodec) Encode(w *Writer, dir Directive, _ *Scope, v reflect.Value) error {
	return w.WriteBigInt(signedInt64(v), dir.Width, dir.Order)
}

// arbitraryIntegerCodec handles non-byte-aligned widths (spec.md §3
// "arbitrary-integer", e.g. 12-bit, 4-bit fields): identical semantics to
// integerCodec, kept as a distinct DirectiveKind because the template
// compiler validates arbitrary widths differently (integer widths must be
// 8/16/32/64, arbitrary-integer widths need not be).
// Width may be dynamic via SizeExpr, the same as array-primitive/string-fixed.
type arbitraryIntegerCodec struct{ evaluatorHolder }

func (*arbitraryIntegerCodec) Kind() DirectiveKind { return KindArbitraryInteger }

func (c *arbitraryIntegerCodec) Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	width, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	v, err := r.ReadBigInt(width, dir.Order, dir.Signed)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v).Convert(fieldType), nil
}

func (c *arbitraryIntegerCodec) Encode(w *Writer, dir Directive, scope *Scope, v reflect.Value) error {
	width, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return err
	}
	return w.WriteBigInt(signedInt64(v), width, dir.Order)
}

// floatCodec handles both single- and double-precision IEEE 754 floats
// (spec.md §3 "float"/"double"), selected by the kind it was registered
// under.
type floatCodec struct{ kind DirectiveKind }

func (c *floatCodec) Kind() DirectiveKind { return c.kind }

func (c *floatCodec) Decode(r *Reader, dir Directive, _ *Scope, fieldType reflect.Type) (reflect.Value, error) {
	if c.kind == KindFloat {
		v, err := r.ReadFloat32(dir.Order)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v).Convert(fieldType), nil
	}
	v, err := r.ReadFloat64(dir.Order)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v).Convert(fieldType), nil
}

func (c *floatCodec) Encode(w *Writer, dir Directive, _ *Scope, v reflect.Value) error {
	if c.kind == KindFloat {
		w.WriteFloat32(float32(v.Float()), dir.Order)
		return nil
	}
	w.WriteFloat64(v.Float(), dir.Order)
	return nil
}

// bitsetCodec handles fixed-width bit flags (spec.md §3 "bitset"): decoded
// into a uint64 with Directive.BitOrder governing which end of the field is
// bit zero, the same primitive the evaluator exposes for `self.flags & 1`
// style expressions. Width may be dynamic via SizeExpr, the same as
// arbitrary-integer.
type bitsetCodec struct{ evaluatorHolder }

func (*bitsetCodec) Kind() DirectiveKind { return KindBitset }

func (c *bitsetCodec) Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	width, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	v, err := r.ReadBits(width, dir.BitOrder)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v).Convert(fieldType), nil
}

func (c *bitsetCodec) Encode(w *Writer, dir Directive, scope *Scope, v reflect.Value) error {
	width, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return err
	}
	w.WriteBits(v.Uint(), width, dir.BitOrder)
	return nil
}

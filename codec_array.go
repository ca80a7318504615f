package boxon

import "reflect"

// arrayPrimitiveCodec handles fixed- or dynamic-length arrays of primitive
// elements (spec.md §3 "array-primitive", e.g. a list of uint16 samples).
// The element kind/width/order live on the same Directive (ElemKind,
// ElemWidth), the outer Width/SizeExpr describing the element count.
type arrayPrimitiveCodec struct{ evaluatorHolder }

func (*arrayPrimitiveCodec) Kind() DirectiveKind { return KindArrayPrimitive }

func (c *arrayPrimitiveCodec) Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	count, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := checkArrayCount(count, r, elemBitWidth(dir)); err != nil {
		return reflect.Value{}, err
	}

	elemType := fieldType.Elem()
	out := reflect.MakeSlice(reflect.SliceOf(elemType), count, count)
	for i := 0; i < count; i++ {
		v, err := decodePrimitiveElement(r, dir)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v.Convert(elemType))
	}
	return out, nil
}

func (c *arrayPrimitiveCodec) Encode(w *Writer, dir Directive, scope *Scope, v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := encodePrimitiveElement(w, dir, v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

// checkArrayCount rejects a negative count or one that could not possibly fit
// in the buffer's remaining bits at minBitsPerElem each (spec.md §5:
// "Implementations must reject negative sizes and sizes exceeding the
// remaining buffer"). This runs before MakeSlice so a crafted size-expr or
// oversized literal count can't force a huge allocation ahead of the
// per-element EOF check that would otherwise be the first thing to notice.
func checkArrayCount(count int, r *Reader, minBitsPerElem int) error {
	if count < 0 {
		return newErrAt(KindOutOfRange, r.Position(), "negative array count")
	}
	if minBitsPerElem <= 0 {
		minBitsPerElem = 1
	}
	if count > r.BitsLeft()/minBitsPerElem {
		return newErrAt(KindOutOfRange, r.Position(), "array count exceeds remaining buffer")
	}
	return nil
}

// elemBitWidth returns how many bits one array-primitive element occupies,
// the same widths decodePrimitiveElement/encodePrimitiveElement read/write.
func elemBitWidth(dir Directive) int {
	switch dir.ElemKind {
	case KindFloat:
		return 32
	case KindDouble:
		return 64
	default: // KindBitset, KindInteger, KindArbitraryInteger
		return dir.ElemWidth
	}
}

// decodePrimitiveElement reads one array-primitive element according to
// ElemKind/ElemWidth, reusing the same wire encodings as the scalar codecs.
func decodePrimitiveElement(r *Reader, dir Directive) (reflect.Value, error) {
	switch dir.ElemKind {
	case KindFloat:
		v, err := r.ReadFloat32(dir.Order)
		return reflect.ValueOf(v), err
	case KindDouble:
		v, err := r.ReadFloat64(dir.Order)
		return reflect.ValueOf(v), err
	case KindBitset:
		v, err := r.ReadBits(dir.ElemWidth, dir.BitOrder)
		return reflect.ValueOf(v), err
	default: // KindInteger, KindArbitraryInteger
		v, err := r.ReadBigInt(dir.ElemWidth, dir.Order, dir.Signed)
		return reflect.ValueOf(v), err
	}
}

func encodePrimitiveElement(w *Writer, dir Directive, v reflect.Value) error {
	switch dir.ElemKind {
	case KindFloat:
		w.WriteFloat32(float32(v.Float()), dir.Order)
		return nil
	case KindDouble:
		w.WriteFloat64(v.Float(), dir.Order)
		return nil
	case KindBitset:
		w.WriteBits(v.Uint(), dir.ElemWidth, dir.BitOrder)
		return nil
	default:
		return w.WriteBigInt(signedInt64(v), dir.ElemWidth, dir.Order)
	}
}

// arrayObjectCodec handles fixed- or dynamic-length arrays of nested
// template-described objects (spec.md §3 "array-object"), each element
// decoded by recursing into the interpreter.
type arrayObjectCodec struct {
	evaluatorHolder
	interpreterHolder
}

func (*arrayObjectCodec) Kind() DirectiveKind { return KindArrayObject }

func (c *arrayObjectCodec) Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	count, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	// A nested object's minimum wire size isn't known without compiling its
	// template (it may contain choices, conditions, or evaluated fields that
	// consume zero bytes), so this uses a conservative 1-bit-per-element
	// floor - still enough to reject a count that could never fit the
	// buffer at all, which is the attack checkArrayCount guards against.
	if err := checkArrayCount(count, r, 1); err != nil {
		return reflect.Value{}, err
	}

	elemType := fieldType.Elem()
	out := reflect.MakeSlice(reflect.SliceOf(elemType), count, count)
	for i := 0; i < count; i++ {
		v, err := c.interp.decodeObject(r, elemType, dir, scope)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func (c *arrayObjectCodec) Encode(w *Writer, dir Directive, scope *Scope, v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := c.interp.encodeObject(w, v.Index(i), dir, scope); err != nil {
			return err
		}
	}
	return nil
}

package boxon

import "reflect"

// objectCodec handles a single nested template-described object field
// (spec.md §3 "object"), including polymorphic dispatch when the Directive
// carries Choices (spec.md §5 "Polymorphism"). All of the actual
// prefix-read/alternative-match/recursion logic lives on Interpreter, shared
// with arrayObjectCodec's per-element decode.
type objectCodec struct {
	interpreterHolder
}

func (*objectCodec) Kind() DirectiveKind { return KindObject }

func (c *objectCodec) Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	return c.interp.decodeObject(r, fieldType, dir, scope)
}

func (c *objectCodec) Encode(w *Writer, dir Directive, scope *Scope, v reflect.Value) error {
	return c.interp.encodeObject(w, v, dir, scope)
}

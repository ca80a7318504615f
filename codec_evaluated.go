package boxon

import "reflect"

// evaluatedCodec handles a field whose value is computed entirely from an
// expression (spec.md §3 "evaluated"): no bytes are read or written on the
// wire, the directive only carries an Expr evaluated against the current
// scope. Used for derived fields (e.g. a human-readable label built from
// sibling fields already decoded earlier in the same template).
type evaluatedCodec struct{ evaluatorHolder }

func (*evaluatedCodec) Kind() DirectiveKind { return KindEvaluated }

func (c *evaluatedCodec) Decode(_ *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	v, err := c.eval.EvalValue(dir.Expr, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	return coerceTo(v, fieldType)
}

// Encode is a no-op: an evaluated field writes nothing to the wire, its
// value is reconstructed by the reader from sibling fields on the other side.
func (*evaluatedCodec) Encode(_ *Writer, _ Directive, _ *Scope, _ reflect.Value) error {
	return nil
}

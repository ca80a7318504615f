package boxon

import "reflect"

// stringFixedCodec handles fixed-byte-width text fields (spec.md §3
// "string-fixed"), decoding exactly N bytes (N possibly dynamic via
// SizeExpr) through the field's Charset. Embedded or trailing NULs are
// part of the decoded value, not stripped: a fixed string always occupies
// exactly N bytes on the wire regardless of content.
type stringFixedCodec struct {
	evaluatorHolder
	charsetHolder
}

func (*stringFixedCodec) Kind() DirectiveKind { return KindStringFixed }

func (c *stringFixedCodec) Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	n, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	s, err := r.ReadTextFixed(n, dir.Charset, c.charsets)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(s).Convert(fieldType), nil
}

func (c *stringFixedCodec) Encode(w *Writer, dir Directive, scope *Scope, v reflect.Value) error {
	n, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return err
	}
	return w.WriteTextFixed(v.String(), n, dir.Charset, c.charsets)
}

// stringTerminatedCodec handles variable-length text delimited by a
// terminator byte (spec.md §3 "string-terminated"), e.g. NUL-terminated
// device names.
type stringTerminatedCodec struct{ charsetHolder }

func (*stringTerminatedCodec) Kind() DirectiveKind { return KindStringTerminated }

func (c *stringTerminatedCodec) Decode(r *Reader, dir Directive, _ *Scope, fieldType reflect.Type) (reflect.Value, error) {
	s, err := r.ReadTextUntil(dir.Terminator, dir.Consume, dir.Charset, c.charsets)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(s).Convert(fieldType), nil
}

func (c *stringTerminatedCodec) Encode(w *Writer, dir Directive, _ *Scope, v reflect.Value) error {
	return w.WriteTextTerminated(v.String(), dir.Terminator, dir.Consume, dir.Charset, c.charsets)
}

// skipCodec consumes (or emits zero) bits without binding a value (spec.md
// §3 "skip"): used for reserved/padding regions. Width may be dynamic via
// SizeExpr, expressed in bits.
type skipCodec struct{ evaluatorHolder }

func (*skipCodec) Kind() DirectiveKind { return KindSkip }

func (c *skipCodec) Decode(r *Reader, dir Directive, scope *Scope, fieldType reflect.Type) (reflect.Value, error) {
	n, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := r.Skip(n); err != nil {
		return reflect.Value{}, err
	}
	return reflect.Zero(fieldType), nil
}

func (c *skipCodec) Encode(w *Writer, dir Directive, scope *Scope, _ reflect.Value) error {
	n, err := resolveSize(c.eval, dir, scope)
	if err != nil {
		return err
	}
	w.Skip(n)
	return nil
}

// skipUntilCodec consumes bytes up to (and optionally including) a
// terminator, without binding a value (spec.md §3 "skip-until"): used to
// fast-forward over a variable-length region whose content isn't modeled.
// Encoding a skip-until is a no-op: there's nothing recorded to re-emit.
type skipUntilCodec struct{}

func (skipUntilCodec) Kind() DirectiveKind { return KindSkipUntil }

func (skipUntilCodec) Decode(r *Reader, dir Directive, _ *Scope, fieldType reflect.Type) (reflect.Value, error) {
	if err := r.SkipUntil(dir.Terminator, dir.Consume); err != nil {
		return reflect.Value{}, err
	}
	return reflect.Zero(fieldType), nil
}

func (skipUntilCodec) Encode(_ *Writer, _ Directive, _ *Scope, _ reflect.Value) error {
	return nil
}

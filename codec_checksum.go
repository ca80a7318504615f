package boxon

import "reflect"

// checksumOffsetKey stashes the byte offset of a reserved checksum
// placeholder in the active Scope's Context map so Interpreter can find and
// patch it once the whole frame (including any trailing header bytes) has
// been written. It's namespaced with a NUL prefix so it can never collide
// with a user-registered context key (those are plain identifiers).
const checksumOffsetKey = "\x00boxon:checksum-offset"

// checksumCodec handles the trailing checksum field (spec.md §6
// "Checksum"). It does not itself verify or compute the checksum - that
// needs the frame's full span, known only once the whole frame (plus any
// trailing header bytes) has been consumed or written, so the actual
// Calculate/compare work is done by Interpreter.verifyChecksum and
// Interpreter.patchChecksum, called by Parser.parseOne and Composer.Compose
// once the root template's fields are done. This codec only reads the raw on-wire value (decode) or
// reserves its placeholder bytes (encode).
type checksumCodec struct{}

func (checksumCodec) Kind() DirectiveKind { return KindChecksumDir }

func (checksumCodec) Decode(r *Reader, dir Directive, _ *Scope, fieldType reflect.Type) (reflect.Value, error) {
	v, err := r.ReadBigInt(dir.Width, dir.Order, false)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(uint64(v)).Convert(fieldType), nil
}

func (checksumCodec) Encode(w *Writer, dir Directive, scope *Scope, _ reflect.Value) error {
	offset := w.Reserve(dir.Width / 8)
	if scope.Context != nil {
		scope.Context[checksumOffsetKey] = offset
	}
	return nil
}

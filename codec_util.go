package boxon

import "reflect"

// signedInt64 reads v as an int64 regardless of whether its Kind is one of
// the signed or unsigned integer kinds. reflect.Value.Int/Uint each panic on
// the other family, but integer directives are wired to whichever Go type
// integerGoType chose for their width/signedness, so every caller that needs
// "the bit pattern as an int64 to hand to WriteBigInt" goes through here
// instead of assuming a signed Kind.
func signedInt64(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	default:
		return v.Int()
	}
}

// evaluatorHolder is embedded by codecs that need dynamic size/condition
// expressions resolved (spec.md §4.C "Injection"); CodecRegistry.inject
// calls injectEvaluator on anything implementing needsEvaluator.
type evaluatorHolder struct {
	eval *Evaluator
}

func (h *evaluatorHolder) injectEvaluator(e *Evaluator) { h.eval = e }

// interpreterHolder is embedded by codecs that recurse into nested
// templates (object, array-object).
type interpreterHolder struct {
	interp *Interpreter
}

func (h *interpreterHolder) injectInterpreter(i *Interpreter) { h.interp = i }

// charsetHolder is embedded by codecs that decode/encode text and need the
// owning Core's host-registered charsets (spec.md §3 charset abstraction),
// scoped per-Core rather than a package-level global.
type charsetHolder struct {
	charsets *charsetRegistry
}

func (h *charsetHolder) injectCharsets(cr *charsetRegistry) { h.charsets = cr }

// resolveSize returns a directive's element/byte count: SizeExpr, when
// present, always wins over the static Width (spec.md §3 "size may be a
// constant or an expression").
func resolveSize(eval *Evaluator, dir Directive, scope *Scope) (int, error) {
	if dir.SizeExpr != "" {
		return eval.EvalSize(dir.SizeExpr, scope)
	}
	return dir.Width, nil
}

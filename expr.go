package boxon

import (
	"reflect"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Evaluator is boxon's read-only expression language (spec.md §4.B), backed
// by CEL (github.com/google/cel-go): CEL is, almost verbatim, "a read-only
// expression language over a rooted object graph" with the comparison,
// boolean, arithmetic, bitwise and function-call grammar spec.md §4.B
// requires, so the interpreter is kept thin here and just adapts boxon's
// scope/identifier conventions on top.
//
// Identifier resolution departs from spec.md §4.B's generic "try context,
// then self, then root" order in one way: member navigation into self/root
// must be written explicitly as `self.field`/`root.field`. CEL is
// statically scoped and cannot predeclare every possible struct field name
// as a bare top-level variable, so bare identifiers resolve only against
// the context map and the well-known names (`self`, `root`, `choice_prefix`,
// and its bare alias `prefix`, matching spec.md's own example expressions
// like "prefix==1"). This keeps the grammar's other guarantees intact and
// is recorded as an Open Question resolution in DESIGN.md.
type Evaluator struct {
	env         *cel.Env
	programs    sync.Map // rewritten expression string -> cel.Program
	contextKeys map[string]bool
}

var identWordRe = regexp.MustCompile(`\b(and|or|not)\b`)
var prefixWordRe = regexp.MustCompile(`\bprefix\b`)

// rewriteExpr translates boxon's expression surface syntax to CEL's:
// word-form boolean operators to symbolic ones, and the choice-prefix
// well-known name (and its bare "prefix" alias) to the valid CEL
// identifier choice_prefix.
func rewriteExpr(expr string) string {
	out := identWordRe.ReplaceAllStringFunc(expr, func(m string) string {
		switch m {
		case "and":
			return "&&"
		case "or":
			return "||"
		case "not":
			return "!"
		}
		return m
	})
	// choice-prefix is not a valid CEL identifier (hyphen); normalize first.
	out = regexp.MustCompile(`\bchoice-prefix\b`).ReplaceAllString(out, "choice_prefix")
	out = prefixWordRe.ReplaceAllString(out, "choice_prefix")
	return out
}

// newEvaluator builds an Evaluator with one CEL variable per context entry
// (or one CEL function, for entries that are callables) plus the three
// well-known scope variables.
func newEvaluator(context map[string]any) (*Evaluator, error) {
	opts := []cel.EnvOption{
		cel.Variable("self", cel.DynType),
		cel.Variable("root", cel.DynType),
		cel.Variable("choice_prefix", cel.DynType),
	}

	keys := map[string]bool{}
	for name, val := range context {
		keys[name] = true
		rv := reflect.ValueOf(val)
		if rv.IsValid() && rv.Kind() == reflect.Func {
			opts = append(opts, functionOption(name, rv))
			continue
		}
		opts = append(opts, cel.Variable(name, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, wrapErrAt(KindExprSyntax, -1, "building expression environment", err)
	}
	return &Evaluator{env: env, contextKeys: keys}, nil
}

// functionOption exposes a context-registered Go function as a CEL
// function of the same arity, every parameter and the result typed dyn.
func functionOption(name string, fn reflect.Value) cel.EnvOption {
	ft := fn.Type()
	argTypes := make([]*cel.Type, ft.NumIn())
	for i := range argTypes {
		argTypes[i] = cel.DynType
	}

	binding := functions.FunctionOp(func(args ...ref.Val) (ref.Val, error) {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			native := a.Value()
			pv := reflect.ValueOf(native)
			want := ft.In(i)
			if pv.IsValid() && pv.Type() != want && pv.Type().ConvertibleTo(want) {
				pv = pv.Convert(want)
			}
			in[i] = pv
		}
		out := fn.Call(in)
		if len(out) == 0 {
			return nil, nil
		}
		return celAdapt(out[0].Interface()), nil
	})

	return cel.Function(name, cel.Overload(name+"_overload", argTypes, cel.DynType, cel.FunctionBinding(binding)))
}

func (e *Evaluator) compile(rewritten string) (cel.Program, error) {
	if cached, ok := e.programs.Load(rewritten); ok {
		return cached.(cel.Program), nil
	}

	ast, iss := e.env.Compile(rewritten)
	if iss != nil && iss.Err() != nil {
		return nil, wrapErrAt(KindExprSyntax, -1, "compiling expression %q"+rewritten, iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, wrapErrAt(KindExprSyntax, -1, "building program for %q"+rewritten, err)
	}
	e.programs.Store(rewritten, prg)
	return prg, nil
}

// eval runs expr against scope, returning the raw CEL result value.
func (e *Evaluator) eval(expr string, scope *Scope) (ref.Val, error) {
	rewritten := rewriteExpr(expr)
	prg, err := e.compile(rewritten)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"self": structToMap(scope.Self),
		"root": structToMap(scope.Root),
	}
	if scope.ChoicePrefix != nil {
		vars["choice_prefix"] = *scope.ChoicePrefix
	} else {
		vars["choice_prefix"] = nil
	}
	for k := range e.contextKeys {
		if v, ok := scope.Context[k]; ok {
			rv := reflect.ValueOf(v)
			if rv.IsValid() && rv.Kind() == reflect.Func {
				continue // bound as a CEL function at env construction time, not an activation variable
			}
			vars[k] = v
		}
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, wrapErrAt(KindExprResolve, -1, "evaluating %q"+expr, err)
	}
	return out, nil
}

// EvalBoolean evaluates expr to a boolean, used for field conditions,
// converter-choice conditions, and polymorphism alternative conditions.
func (e *Evaluator) EvalBoolean(expr string, scope *Scope) (bool, error) {
	v, err := e.eval(expr, scope)
	if err != nil {
		return false, err
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, newErr(KindExprType, "expression did not evaluate to a boolean: "+expr)
	}
	return b, nil
}

// EvalSize evaluates expr to a non-negative integer, used for dynamic
// array/bitset/string/skip sizes. A pure integer literal bypasses CEL
// entirely as a fast path. An empty expression must never be passed here
// (spec.md §4.B): it means "no dynamic size".
func (e *Evaluator) EvalSize(expr string, scope *Scope) (int, error) {
	if expr == "" {
		return 0, newErr(KindExprSyntax, "empty size expression must not be evaluated")
	}
	if n, err := strconv.Atoi(expr); err == nil {
		if n < 0 {
			return 0, newErr(KindOutOfRange, "size expression evaluated negative")
		}
		return n, nil
	}

	v, err := e.eval(expr, scope)
	if err != nil {
		return 0, err
	}
	n, err := asInt(v.Value())
	if err != nil {
		return 0, newErr(KindExprType, "expression did not evaluate to an integer: "+expr)
	}
	if n < 0 {
		return 0, newErr(KindOutOfRange, "size expression evaluated negative")
	}
	return int(n), nil
}

// EvalValue evaluates expr to an arbitrary result, used for evaluated fields.
func (e *Evaluator) EvalValue(expr string, scope *Scope) (any, error) {
	v, err := e.eval(expr, scope)
	if err != nil {
		return nil, err
	}
	return v.Value(), nil
}

func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, newErr(KindExprType, "value is not numeric")
	}
}

// structToMap shallow/recursively converts a Go struct (or pointer to one)
// into a map[string]any keyed by Go field name, so CEL's native `.field`
// navigation works against self/root without predeclaring every field as a
// CEL variable (see the Evaluator doc comment).
func structToMap(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return map[string]any{}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return map[string]any{}
	}

	out := map[string]any{}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		out[f.Name] = celValue(rv.Field(i))
	}
	return out
}

var timeType = reflect.TypeOf(time.Time{})

func celValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface()
		}
		return structToMap(rv.Interface())
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return celValue(rv.Elem())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = celValue(rv.Index(i))
		}
		return out
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	default:
		return rv.Interface()
	}
}

// celAdapt wraps a raw Go value for a context function's return, using the
// same default adapter CEL applies to activation variables.
func celAdapt(v any) ref.Val {
	return types.DefaultTypeAdapter.NativeToValue(v)
}

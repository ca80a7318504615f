package boxon

// DirectiveKind is the closed set of directive kinds the interpreter
// recognizes (spec.md §3's directive table). Dispatch on Kind maps to a
// tagged union over directive variants rather than open polymorphism,
// exactly as spec.md §9 recommends.
type DirectiveKind int

const (
	KindInteger DirectiveKind = iota
	KindArbitraryInteger
	KindFloat
	KindDouble
	KindBitset
	KindArrayPrimitive
	KindArrayObject
	KindObject
	KindStringFixed
	KindStringTerminated
	KindSkip
	KindSkipUntil
	KindChecksumDir
	KindEvaluated
)

func (k DirectiveKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindArbitraryInteger:
		return "arbint"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindBitset:
		return "bitset"
	case KindArrayPrimitive:
		return "array"
	case KindArrayObject:
		return "objarray"
	case KindObject:
		return "object"
	case KindStringFixed:
		return "string"
	case KindStringTerminated:
		return "string-until"
	case KindSkip:
		return "skip"
	case KindSkipUntil:
		return "skip-until"
	case KindChecksumDir:
		return "checksum"
	case KindEvaluated:
		return "eval"
	default:
		return "unknown"
	}
}

// Alternative is one (condition, prefix-value, type) record inside a
// polymorphic object/array-object directive's Choices (spec.md §3, §9).
type Alternative struct {
	// Condition is evaluated against the current scope; the first
	// alternative whose condition is true selects TypeName. Empty when
	// PrefixValue is used instead as a shorthand for "choice-prefix == PrefixValue".
	Condition string
	// PrefixValue, when non-nil and Condition is empty, is sugar for an
	// equality condition against the well-known choice-prefix scope variable.
	PrefixValue *uint64
	// TypeName is looked up in the Core's registered named types (CoreBuilder.Type).
	TypeName string
}

// Choices describes prefix-driven or condition-driven polymorphism for an
// object or array-object directive (spec.md §3 "Polymorphism").
type Choices struct {
	PrefixSize   int // bits; 0 means no prefix is read, selection is condition-only
	PrefixOrder  BitOrder
	Alternatives []Alternative
	// Default, when non-empty, is the type name used when no alternative matches.
	Default string
}

// Directive is the compiled, immutable description of one field's wire
// binding: the tagged union from spec.md §3's directive table plus the
// parameters each kind needs.
type Directive struct {
	Kind DirectiveKind

	// integer / arbint / bitset / array
	Width    int    // fixed bit width for KindInteger (8/16/32/64) and checksum; the literal count for arbint/bitset/array/string/skip
	SizeExpr string // bit/element count expression for arbint/bitset/array/string/skip
	Order    ByteOrder
	BitOrder BitOrder
	Signed   bool

	// array-primitive element kind and width (bits); the outer Width/SizeExpr
	// carries the element count instead
	ElemKind  DirectiveKind
	ElemWidth int

	// object / array-object polymorphism
	Choices  *Choices
	TypeName string // concrete type name for a non-polymorphic object/array-object element

	// string
	Charset    string
	Terminator byte
	Consume    bool

	// checksum
	Algorithm    string
	SkipStartExp string
	SkipEndExp   string
	Initial      uint64

	// evaluated
	Expr string
}

// Binding decorates a value-producing Directive with the condition,
// converter, and validator behavior every field codec applies uniformly
// (spec.md §3 "Binding decoration", §4.D).
type Binding struct {
	Directive Directive

	Condition string // empty means "always produce a value"

	ConverterName    string             // default converter; empty means identity
	ConverterChoices []ConditionedName  // first matching condition wins over ConverterName
	ValidatorName    string             // empty means no validation
	PostProcessName  string             // empty means no post-processing
}

// ConditionedName pairs a condition expression with a named converter/validator
// entry, used for Binding.ConverterChoices (spec.md §3).
type ConditionedName struct {
	Condition string
	Name      string
}

// Header is the magic-framed start (and optional end) of a template
// (spec.md §3 "Template.header").
type Header struct {
	Start   []byte
	End     []byte
	Charset string
}

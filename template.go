package boxon

import (
	"reflect"
	"strconv"
	"strings"
)

// Template is the compiled, cached, immutable description of one message
// type (spec.md §3 "Template"): an ordered list of field bindings plus,
// for root (frame-level) templates, the Header that identifies it on the
// wire. Compilation happens once per reflect.Type, mirroring the teacher's
// newDecoderUsingTag/newEncoderUsingTag one-time schema walk.
type Template struct {
	Type          reflect.Type
	Header        *Header // nil for templates only ever reached via polymorphism/nesting
	Fields        []templateField
	ChecksumIndex int // index into Fields of the checksum binding, -1 if none
}

type templateField struct {
	Binding    Binding
	FieldIndex int
}

// compileTemplate walks t's exported fields looking for `boxon:"..."` tags,
// building one Binding per tagged field (spec.md §3's directive table) and
// locating the template's single optional checksum field (spec.md §6, at
// most one per template).
func compileTemplate(t reflect.Type) (*Template, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, newErr(KindBadType, "template type must be a struct: "+t.String())
	}

	tmpl := &Template{Type: t, ChecksumIndex: -1}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported, not part of the wire model
		}
		tag, ok := f.Tag.Lookup("boxon")
		if !ok {
			continue
		}

		b, err := parseBinding(tag)
		if err != nil {
			return nil, wrapErrAt(KindBadType, -1, "field "+f.Name, err)
		}

		if choicesTag, ok := f.Tag.Lookup("boxon-choices"); ok {
			choices, err := parseChoices(choicesTag)
			if err != nil {
				return nil, wrapErrAt(KindBadType, -1, "field "+f.Name+" boxon-choices", err)
			}
			b.Directive.Choices = choices
		}

		if b.Directive.Kind == KindChecksumDir {
			if tmpl.ChecksumIndex != -1 {
				return nil, newErr(KindMultipleChecksums, "field "+f.Name)
			}
			tmpl.ChecksumIndex = len(tmpl.Fields)
		}

		tmpl.Fields = append(tmpl.Fields, templateField{Binding: b, FieldIndex: i})
	}

	return tmpl, nil
}

// parseBinding parses one `boxon:"..."` tag value into a Binding: a
// directive call, `kind(arg,arg,...)`, followed by comma-separated
// `key=value` decoration options.
func parseBinding(tag string) (Binding, error) {
	parts := splitTopLevel(tag, ',')
	if len(parts) == 0 || parts[0] == "" {
		return Binding{}, newErr(KindUnknownDirective, "empty directive")
	}

	dir, err := parseDirective(parts[0])
	if err != nil {
		return Binding{}, err
	}

	b := Binding{Directive: dir}
	for _, opt := range parts[1:] {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			continue
		}
		switch key {
		case "condition":
			b.Condition = value
		case "convert":
			b.ConverterName = value
		case "convert-if":
			cond, name, ok := strings.Cut(value, ":")
			if !ok {
				return Binding{}, newErr(KindBadType, "malformed convert-if: "+value)
			}
			b.ConverterChoices = append(b.ConverterChoices, ConditionedName{Condition: cond, Name: name})
		case "validate":
			b.ValidatorName = value
		case "post":
			b.PostProcessName = value
		}
	}
	return b, nil
}

// parseDirective parses the `kind(arg,arg,...)` call at the head of a
// binding tag.
func parseDirective(call string) (Directive, error) {
	open := strings.IndexByte(call, '(')
	if open == -1 || !strings.HasSuffix(call, ")") {
		return Directive{}, newErr(KindUnknownDirective, call)
	}
	kindName := call[:open]
	args := splitTopLevel(call[open+1:len(call)-1], ',')

	switch kindName {
	case "integer":
		return parseIntegerDirective(KindInteger, args)
	case "arbitrary-integer":
		return parseArbitraryIntegerDirective(args)
	case "float":
		return Directive{Kind: KindFloat, Width: 32, Order: parseOrderArg(args, 0, BigEndian)}, nil
	case "double":
		return Directive{Kind: KindDouble, Width: 64, Order: parseOrderArg(args, 0, BigEndian)}, nil
	case "bitset":
		return parseBitsetDirective(args)
	case "array-primitive":
		return parseArrayPrimitiveDirective(args)
	case "array-object":
		return parseArrayObjectDirective(args)
	case "object":
		return parseObjectDirective(args)
	case "string-fixed":
		return parseStringFixedDirective(args)
	case "string-terminated":
		return parseStringTerminatedDirective(args)
	case "skip":
		return parseSkipDirective(args)
	case "skip-until":
		return parseSkipUntilDirective(args)
	case "checksum":
		return parseChecksumDirective(args)
	case "evaluated":
		if len(args) < 1 {
			return Directive{}, newErr(KindBadType, "evaluated requires an expression")
		}
		return Directive{Kind: KindEvaluated, Expr: args[0]}, nil
	default:
		return Directive{}, newErr(KindUnknownDirective, kindName)
	}
}

func parseIntegerDirective(kind DirectiveKind, args []string) (Directive, error) {
	if len(args) < 1 {
		return Directive{}, newErr(KindBadType, "integer requires a width")
	}
	width, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return Directive{}, wrapErrAt(KindBadType, -1, "integer width", err)
	}
	if width != 8 && width != 16 && width != 32 && width != 64 {
		return Directive{}, newErr(KindBadType, "integer width must be 8, 16, 32 or 64")
	}
	return Directive{
		Kind:   kind,
		Width:  width,
		Order:  parseOrderArg(args, 1, BigEndian),
		Signed: parseSignedArg(args, 2),
	}, nil
}

func parseArbitraryIntegerDirective(args []string) (Directive, error) {
	if len(args) < 1 {
		return Directive{}, newErr(KindBadType, "arbitrary-integer requires a width")
	}
	dir := Directive{Kind: KindArbitraryInteger}
	setCountArg(&dir, strings.TrimSpace(args[0]))
	dir.BitOrder = parseBitOrderArg(args, 1, MSBFirst)
	dir.Order = parseOrderArg(args, 2, BigEndian)
	dir.Signed = parseSignedArg(args, 3)
	return dir, nil
}

func parseBitsetDirective(args []string) (Directive, error) {
	if len(args) < 1 {
		return Directive{}, newErr(KindBadType, "bitset requires a width")
	}
	dir := Directive{Kind: KindBitset}
	setCountArg(&dir, strings.TrimSpace(args[0]))
	dir.BitOrder = parseBitOrderArg(args, 1, MSBFirst)
	return dir, nil
}

func parseArrayPrimitiveDirective(args []string) (Directive, error) {
	if len(args) < 4 {
		return Directive{}, newErr(KindBadType, "array-primitive requires count,kind,width,order[,signed]")
	}
	dir := Directive{Kind: KindArrayPrimitive}
	setCountArg(&dir, strings.TrimSpace(args[0]))

	switch strings.TrimSpace(args[1]) {
	case "float":
		dir.ElemKind = KindFloat
	case "double":
		dir.ElemKind = KindDouble
	case "bitset":
		dir.ElemKind = KindBitset
	default:
		dir.ElemKind = KindInteger
	}
	width, err := strconv.Atoi(strings.TrimSpace(args[2]))
	if err != nil {
		return Directive{}, wrapErrAt(KindBadType, -1, "array-primitive element width", err)
	}
	dir.ElemWidth = width
	dir.Order = parseOrderArg(args, 3, BigEndian)
	dir.BitOrder = parseBitOrderArg(args, 3, MSBFirst)
	dir.Signed = parseSignedArg(args, 4)
	return dir, nil
}

func parseArrayObjectDirective(args []string) (Directive, error) {
	if len(args) < 1 {
		return Directive{}, newErr(KindBadType, "array-object requires a count")
	}
	dir := Directive{Kind: KindArrayObject}
	setCountArg(&dir, strings.TrimSpace(args[0]))
	if len(args) > 1 {
		dir.TypeName = strings.TrimSpace(args[1])
	}
	return dir, nil
}

func parseObjectDirective(args []string) (Directive, error) {
	dir := Directive{Kind: KindObject}
	if len(args) > 0 {
		dir.TypeName = strings.TrimSpace(args[0])
	}
	return dir, nil
}

func parseStringFixedDirective(args []string) (Directive, error) {
	if len(args) < 1 {
		return Directive{}, newErr(KindBadType, "string-fixed requires a size")
	}
	dir := Directive{Kind: KindStringFixed}
	setCountArg(&dir, strings.TrimSpace(args[0]))
	if len(args) > 1 {
		dir.Charset = strings.TrimSpace(args[1])
	}
	return dir, nil
}

func parseStringTerminatedDirective(args []string) (Directive, error) {
	dir := Directive{Kind: KindStringTerminated, Terminator: 0, Consume: true}
	if len(args) > 0 {
		t, err := parseByteArg(args[0])
		if err != nil {
			return Directive{}, err
		}
		dir.Terminator = t
	}
	if len(args) > 1 {
		dir.Consume = parseBoolArg(args[1], true)
	}
	if len(args) > 2 {
		dir.Charset = strings.TrimSpace(args[2])
	}
	return dir, nil
}

func parseSkipDirective(args []string) (Directive, error) {
	if len(args) < 1 {
		return Directive{}, newErr(KindBadType, "skip requires a bit count")
	}
	dir := Directive{Kind: KindSkip}
	setCountArg(&dir, strings.TrimSpace(args[0]))
	return dir, nil
}

func parseSkipUntilDirective(args []string) (Directive, error) {
	if len(args) < 1 {
		return Directive{}, newErr(KindBadType, "skip-until requires a terminator")
	}
	t, err := parseByteArg(args[0])
	if err != nil {
		return Directive{}, err
	}
	dir := Directive{Kind: KindSkipUntil, Terminator: t, Consume: true}
	if len(args) > 1 {
		dir.Consume = parseBoolArg(args[1], true)
	}
	return dir, nil
}

func parseChecksumDirective(args []string) (Directive, error) {
	if len(args) < 2 {
		return Directive{}, newErr(KindBadType, "checksum requires width,algorithm")
	}
	width, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return Directive{}, wrapErrAt(KindBadType, -1, "checksum width", err)
	}
	dir := Directive{Kind: KindChecksumDir, Width: width, Order: BigEndian, Algorithm: strings.TrimSpace(args[1])}
	if len(args) > 2 {
		dir.Order = parseByteOrderName(strings.TrimSpace(args[2]))
	}
	if len(args) > 3 {
		dir.SkipStartExp = strings.TrimSpace(args[3])
	}
	// skip_end is required: the checksum span runs up to frameEnd (the
	// position after the checksum field itself has been read/written), so a
	// missing or too-small skip_end would fold the checksum's own bytes into
	// its own computation. When skip_end is a plain integer literal this is
	// checked right here, at compile time; a dynamic expression (referencing
	// context/self) can only be checked once a concrete frame is available,
	// so that case is deferred to Interpreter.checksumSpan at decode/encode
	// time (spec.md §6).
	if len(args) <= 4 {
		return Directive{}, newErr(KindBadType, "checksum requires skip_end")
	}
	skipEnd := strings.TrimSpace(args[4])
	dir.SkipEndExp = skipEnd
	if n, err := strconv.Atoi(skipEnd); err == nil {
		if n < width/8 {
			return Directive{}, newErr(KindBadType, "checksum skip_end must be >= width_of_checksum_in_bytes")
		}
	}
	if len(args) > 5 {
		if n, err := strconv.ParseUint(strings.TrimSpace(args[5]), 0, 64); err == nil {
			dir.Initial = n
		}
	}
	return dir, nil
}

// setCountArg binds a directive's element/byte/bit count, recognizing a
// plain integer literal versus a size expression (spec.md §3: "size may be
// a constant or an expression").
func setCountArg(dir *Directive, arg string) {
	if n, err := strconv.Atoi(arg); err == nil {
		dir.Width = n
		return
	}
	dir.SizeExpr = arg
}

func parseOrderArg(args []string, idx int, def ByteOrder) ByteOrder {
	if idx >= len(args) {
		return def
	}
	return parseByteOrderName(strings.TrimSpace(args[idx]))
}

func parseByteOrderName(s string) ByteOrder {
	if s == "little" {
		return LittleEndian
	}
	return BigEndian
}

func parseBitOrderArg(args []string, idx int, def BitOrder) BitOrder {
	if idx >= len(args) {
		return def
	}
	if strings.TrimSpace(args[idx]) == "lsb" {
		return LSBFirst
	}
	return MSBFirst
}

func parseSignedArg(args []string, idx int) bool {
	if idx >= len(args) {
		return false
	}
	return strings.TrimSpace(args[idx]) == "signed"
}

func parseBoolArg(s string, def bool) bool {
	switch strings.TrimSpace(s) {
	case "true":
		return true
	case "false":
		return false
	default:
		return def
	}
}

func parseByteArg(s string) (byte, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, wrapErrAt(KindBadType, -1, "byte literal "+s, err)
	}
	return byte(n), nil
}

// parseChoices parses a `boxon-choices:"..."` tag (spec.md §5
// "Polymorphism"): `prefix=<n>:<order>,alt=<cond>|<type>,...,default=<type>`.
// A bare numeric alt condition, e.g. `alt=1|ImeiFrame`, is shorthand for
// `choice_prefix==1`.
func parseChoices(tag string) (*Choices, error) {
	c := &Choices{PrefixOrder: MSBFirst}
	for _, part := range splitTopLevel(tag, ',') {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "prefix":
			size, order, ok := strings.Cut(value, ":")
			n, err := strconv.Atoi(size)
			if err != nil {
				return nil, wrapErrAt(KindBadType, -1, "choices prefix size", err)
			}
			c.PrefixSize = n
			if ok && order == "lsb" {
				c.PrefixOrder = LSBFirst
			}
		case "alt":
			cond, typeName, ok := strings.Cut(value, "|")
			if !ok {
				return nil, newErr(KindBadType, "malformed alt: "+value)
			}
			alt := Alternative{TypeName: strings.TrimSpace(typeName)}
			if n, err := strconv.ParseUint(strings.TrimSpace(cond), 0, 64); err == nil {
				alt.PrefixValue = &n
			} else {
				alt.Condition = cond
			}
			c.Alternatives = append(c.Alternatives, alt)
		case "default":
			c.Default = strings.TrimSpace(value)
		}
	}
	return c, nil
}

// splitTopLevel splits s on sep, ignoring separators nested inside
// parentheses (so an expression argument like "f(a,b)" isn't torn apart).
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

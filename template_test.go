package boxon

import (
	"reflect"
	"testing"
)

type taggedStruct struct {
	A uint16 `boxon:"integer(16)"`
	B int8   `boxon:"integer(8,big,signed)"`
	C uint64 `boxon:"bitset(3,lsb)"`
	D string `boxon:"string-fixed(4,ASCII),condition=self.A>0,convert=celsius"`
	E uint32 // untagged field, ignored by the compiler
}

func TestCompileTemplateBasic(t *testing.T) {
	tmpl, err := compileTemplate(reflect.TypeOf(taggedStruct{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(tmpl.Fields) != 4 {
		t.Fatalf("got %d fields, want 4", len(tmpl.Fields))
	}
	if tmpl.Fields[1].Binding.Directive.Signed != true {
		t.Error("field B should be signed")
	}
	if tmpl.Fields[2].Binding.Directive.BitOrder != LSBFirst {
		t.Error("field C should be lsb bit order")
	}
	if tmpl.Fields[3].Binding.Condition != "self.A>0" {
		t.Errorf("got condition %q", tmpl.Fields[3].Binding.Condition)
	}
	if tmpl.Fields[3].Binding.ConverterName != "celsius" {
		t.Errorf("got converter %q", tmpl.Fields[3].Binding.ConverterName)
	}
	if tmpl.ChecksumIndex != -1 {
		t.Errorf("expected no checksum, got index %d", tmpl.ChecksumIndex)
	}
}

type multiChecksumStruct struct {
	A  uint8  `boxon:"integer(8)"`
	C1 uint16 `boxon:"checksum(16,crc,big,0,2)"`
	C2 uint16 `boxon:"checksum(16,crc,big,0,2)"`
}

func TestCompileTemplateRejectsMultipleChecksums(t *testing.T) {
	_, err := compileTemplate(reflect.TypeOf(multiChecksumStruct{}))
	if err == nil {
		t.Fatal("expected error for multiple checksum fields")
	}
	be, ok := err.(*Error)
	if !ok || be.Kind != KindMultipleChecksums {
		t.Errorf("got %v, want KindMultipleChecksums", err)
	}
}

func TestSplitTopLevelRespectsParens(t *testing.T) {
	got := splitTopLevel("integer(16),condition=f(a,b)>0,convert=x", ',')
	want := []string{"integer(16)", "condition=f(a,b)>0", "convert=x"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseChoicesPrefixShorthandAndCondition(t *testing.T) {
	ch, err := parseChoices("prefix=8:lsb,alt=1|TypeA,alt=self.Mode==2|TypeB,default=TypeC")
	if err != nil {
		t.Fatal(err)
	}
	if ch.PrefixSize != 8 || ch.PrefixOrder != LSBFirst {
		t.Errorf("got size=%d order=%v", ch.PrefixSize, ch.PrefixOrder)
	}
	if len(ch.Alternatives) != 2 {
		t.Fatalf("got %d alternatives", len(ch.Alternatives))
	}
	if ch.Alternatives[0].PrefixValue == nil || *ch.Alternatives[0].PrefixValue != 1 {
		t.Errorf("alt0: expected prefix value 1")
	}
	if ch.Alternatives[1].Condition != "self.Mode==2" {
		t.Errorf("alt1: got condition %q", ch.Alternatives[1].Condition)
	}
	if ch.Default != "TypeC" {
		t.Errorf("got default %q", ch.Default)
	}
}

func TestParseArrayPrimitiveDirective(t *testing.T) {
	dir, err := parseDirective("array-primitive(10,integer,16,little,signed)")
	if err != nil {
		t.Fatal(err)
	}
	if dir.Kind != KindArrayPrimitive {
		t.Fatalf("got kind %v", dir.Kind)
	}
	if dir.Width != 10 {
		t.Errorf("got count %d, want 10", dir.Width)
	}
	if dir.ElemKind != KindInteger {
		t.Errorf("got elem kind %v", dir.ElemKind)
	}
	if dir.ElemWidth != 16 {
		t.Errorf("got elem width %d, want 16", dir.ElemWidth)
	}
	if dir.Order != LittleEndian || !dir.Signed {
		t.Errorf("got order=%v signed=%v", dir.Order, dir.Signed)
	}
}

package boxon

import (
	"errors"
	"testing"
)

// celsiusConverter maps a raw tenths-of-a-degree wire reading to a whole
// degree value and back, exercising Binding.ConverterName end to end.
type celsiusConverter struct{}

func (celsiusConverter) ToUser(wire any) (any, error) {
	return wire.(uint16) / 10, nil
}

func (celsiusConverter) ToWire(user any) (any, error) {
	return uint16(user.(uint16) * 10), nil
}

type rangeValidator struct{ max uint16 }

func (v rangeValidator) Validate(user any) error {
	if user.(uint16) > v.max {
		return errors.New("value out of range")
	}
	return nil
}

type sensorFrame struct {
	Flags uint8  `boxon:"integer(8)"`
	Temp  uint16 `boxon:"integer(16),convert=celsius,validate=maxTemp"`
	Extra uint8  `boxon:"integer(8),condition=self.Flags==1"`
}

func TestConverterValidatorConditionPipeline(t *testing.T) {
	core, err := NewCoreBuilder().
		Converter("celsius", celsiusConverter{}).
		Validator("maxTemp", rangeValidator{max: 50}).
		Register(Header{Start: []byte{0xAA}}, sensorFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	// Flags=1 so Extra is present; Temp wire 250 -> user 25.
	frames := NewParser(core).Parse([]byte{0xAA, 0x01, 0x00, 0xFA, 0x07})
	if len(frames) != 1 || frames[0].Err != nil {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	got := frames[0].Value.(sensorFrame)
	if got.Temp != 25 {
		t.Errorf("Temp: got %d, want 25", got.Temp)
	}
	if got.Extra != 7 {
		t.Errorf("Extra: got %d, want 7", got.Extra)
	}

	out, err := NewComposer(core).Compose(got)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xAA, 0x01, 0x00, 0xFA, 0x07}
	if string(out) != string(want) {
		t.Errorf("roundtrip mismatch: got % x, want % x", out, want)
	}
}

func TestConverterConditionAbsent(t *testing.T) {
	core, err := NewCoreBuilder().
		Converter("celsius", celsiusConverter{}).
		Validator("maxTemp", rangeValidator{max: 50}).
		Register(Header{Start: []byte{0xAA}}, sensorFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	// Flags=0 so Extra's condition is false: no Extra byte on the wire.
	frames := NewParser(core).Parse([]byte{0xAA, 0x00, 0x00, 0x64})
	if len(frames) != 1 || frames[0].Err != nil {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	got := frames[0].Value.(sensorFrame)
	if got.Temp != 10 {
		t.Errorf("Temp: got %d, want 10", got.Temp)
	}
	if got.Extra != 0 {
		t.Errorf("Extra: got %d, want 0 (never decoded)", got.Extra)
	}
}

func TestValidatorRejectsOutOfRange(t *testing.T) {
	core, err := NewCoreBuilder().
		Converter("celsius", celsiusConverter{}).
		Validator("maxTemp", rangeValidator{max: 50}).
		Register(Header{Start: []byte{0xAA}}, sensorFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	// Temp wire 999 -> user 99, above the max of 50.
	frames := NewParser(core).Parse([]byte{0xAA, 0x00, 0x03, 0xE7})
	if len(frames) != 1 || frames[0].Err == nil {
		t.Fatalf("expected validation failure, got %+v", frames)
	}
	if frames[0].Err.Kind != KindValidationError {
		t.Errorf("got %v, want KindValidationError", frames[0].Err.Kind)
	}
}

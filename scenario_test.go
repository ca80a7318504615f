package boxon

import (
	"bytes"
	"testing"
)

// crc16XModem implements the CRC-16/CCITT-XMODEM variant (poly 0x1021,
// init 0x0000, no reflection, no final XOR) used by scenario 5 below. The
// algorithm catalog is explicitly out of scope for the exported package
// (spec.md §1 "Non-goals"), so this lives only in test code as an example
// Checksummer implementation.
type crc16XModem struct{}

func (crc16XModem) Calculate(data []byte, start, end int, initial uint64) uint64 {
	crc := uint16(initial)
	for _, b := range data[start:end] {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return uint64(crc)
}

// --- scenario 1: fixed-width string decode ---

type imeiFrame struct {
	Imei string `boxon:"string-fixed(15,ASCII)"`
}

func TestScenarioFixedStringDecode(t *testing.T) {
	core, err := NewCoreBuilder().
		Register(Header{Start: []byte("IM")}, imeiFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	frames := NewParser(core).Parse([]byte("IM799273987130000"))
	if len(frames) != 1 || frames[0].Err != nil {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	got := frames[0].Value.(imeiFrame)
	if got.Imei != "799273987130000" {
		t.Errorf("got %q, want 799273987130000", got.Imei)
	}

	out, err := NewComposer(core).Compose(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte("IM799273987130000")) {
		t.Errorf("roundtrip mismatch: got %q", out)
	}
}

// --- scenario 2: polymorphic object with a prefix ---

type t1Short struct {
	Value uint16 `boxon:"integer(16)"`
}

type t2Int struct {
	Value uint32 `boxon:"integer(32)"`
}

type tcFrame struct {
	Value any `boxon:"object()" boxon-choices:"prefix=8,alt=1|T1,alt=2|T2"`
}

func TestScenarioPolymorphicPrefix(t *testing.T) {
	core, err := NewCoreBuilder().
		Type("T1", t1Short{}).
		Type("T2", t2Int{}).
		Register(Header{Start: []byte("tc1")}, tcFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	p := NewParser(core)

	f1 := p.Parse([]byte{0x74, 0x63, 0x31, 0x01, 0x12, 0x34})
	if len(f1) != 1 || f1[0].Err != nil {
		t.Fatalf("frame1: %+v", f1)
	}
	got1 := f1[0].Value.(tcFrame).Value.(t1Short)
	if got1.Value != 0x1234 {
		t.Errorf("got %#x, want 0x1234", got1.Value)
	}

	f2 := p.Parse([]byte{0x74, 0x63, 0x31, 0x02, 0x11, 0x22, 0x33, 0x44})
	if len(f2) != 1 || f2[0].Err != nil {
		t.Fatalf("frame2: %+v", f2)
	}
	got2 := f2[0].Value.(tcFrame).Value.(t2Int)
	if got2.Value != 0x11223344 {
		t.Errorf("got %#x, want 0x11223344", got2.Value)
	}

	out1, err := NewComposer(core).Compose(f1[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out1, []byte{0x74, 0x63, 0x31, 0x01, 0x12, 0x34}) {
		t.Errorf("roundtrip1 mismatch: % x", out1)
	}

	out2, err := NewComposer(core).Compose(f2[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out2, []byte{0x74, 0x63, 0x31, 0x02, 0x11, 0x22, 0x33, 0x44}) {
		t.Errorf("roundtrip2 mismatch: % x", out2)
	}
}

// --- scenario 3: terminated string followed by a fixed string ---

type greetingFrame struct {
	Name    string `boxon:"string-terminated(0x2c,true,UTF-8)"`
	Payload string `boxon:"string-fixed(4,ASCII)"`
}

func TestScenarioTerminatedString(t *testing.T) {
	core, err := NewCoreBuilder().
		Register(Header{Start: []byte("hdr,")}, greetingFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	frames := NewParser(core).Parse([]byte("hdr,Mauro,ABCD"))
	if len(frames) != 1 || frames[0].Err != nil {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	got := frames[0].Value.(greetingFrame)
	if got.Name != "Mauro" || got.Payload != "ABCD" {
		t.Errorf("got %+v", got)
	}

	out, err := NewComposer(core).Compose(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte("hdr,Mauro,ABCD")) {
		t.Errorf("roundtrip mismatch: got %q", out)
	}
}

// --- scenario 4: bit-accurate arbitrary integers ---

type nibbleFrame struct {
	First  uint16 `boxon:"arbitrary-integer(12)"`
	Second uint8  `boxon:"arbitrary-integer(4)"`
}

func TestScenarioArbitraryIntegerWidths(t *testing.T) {
	core, err := NewCoreBuilder().
		Register(Header{Start: []byte{0xF0}}, nibbleFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	frames := NewParser(core).Parse([]byte{0xF0, 0xAB, 0xCD})
	if len(frames) != 1 || frames[0].Err != nil {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	got := frames[0].Value.(nibbleFrame)
	if got.First != 0xABC {
		t.Errorf("First: got %#x, want 0xabc", got.First)
	}
	if got.Second != 0xD {
		t.Errorf("Second: got %#x, want 0xd", got.Second)
	}
}

// --- scenario 5: checksum verification ---

type checksumFrame struct {
	Payload string `boxon:"string-fixed(6,ASCII)"`
	Crc     uint16 `boxon:"checksum(16,crc16-xmodem,big,0,2)"`
}

func checksumCore(t *testing.T) *Core {
	t.Helper()
	core, err := NewCoreBuilder().
		Checksummer("crc16-xmodem", crc16XModem{}).
		Register(Header{Start: []byte("9")}, checksumFrame{}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return core
}

func TestScenarioChecksumVerification(t *testing.T) {
	core := checksumCore(t)
	frame := append([]byte("9142656"), 0x87, 0xF4)

	frames := NewParser(core).Parse(frame)
	if len(frames) != 1 || frames[0].Err != nil {
		t.Fatalf("expected successful checksum verify, got %+v", frames)
	}
}

func TestScenarioChecksumMismatch(t *testing.T) {
	core := checksumCore(t)
	frame := append([]byte("9142656"), 0x87, 0xF5) // flipped last byte

	frames := NewParser(core).Parse(frame)
	if len(frames) != 1 || frames[0].Err == nil {
		t.Fatalf("expected checksum mismatch, got %+v", frames)
	}
	if frames[0].Err.Kind != KindChecksumMismatch {
		t.Errorf("got %v, want KindChecksumMismatch", frames[0].Err.Kind)
	}
}

// --- scenario 6: frame recovery after an unrecognized magic ---

func TestScenarioFrameRecovery(t *testing.T) {
	core := checksumCore(t)
	validFrame := append([]byte("9142656"), 0x87, 0xF4)
	data := append([]byte{0x00}, validFrame...)

	frames := NewParser(core).Parse(data)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames (failure + success), got %d: %+v", len(frames), frames)
	}
	if frames[0].Err == nil || frames[0].Err.Kind != KindNoTemplate {
		t.Errorf("frame 0: expected KindNoTemplate, got %+v", frames[0])
	}
	if frames[0].Start != 0 {
		t.Errorf("frame 0: expected Start=0, got %d", frames[0].Start)
	}
	if frames[1].Err != nil {
		t.Errorf("frame 1: expected success, got %+v", frames[1])
	}
	if frames[1].Start != 1 {
		t.Errorf("frame 1: expected Start=1, got %d", frames[1].Start)
	}
}

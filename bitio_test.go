package boxon

import (
	"bytes"
	"testing"
)

func TestReaderByteAligned(t *testing.T) {
	r := NewReader([]byte{0x12, 0x34, 0x56, 0x78})

	v16, err := r.ReadUint16(BigEndian)
	if err != nil {
		t.Fatalf("ReadUint16: %v", err)
	}
	if v16 != 0x1234 {
		t.Errorf("got %#x, want 0x1234", v16)
	}

	v16le, err := r.ReadUint16(LittleEndian)
	if err != nil {
		t.Fatalf("ReadUint16 little: %v", err)
	}
	if v16le != 0x7856 {
		t.Errorf("got %#x, want 0x7856", v16le)
	}
}

func TestReaderBitsetMSBAndLSB(t *testing.T) {
	// 0b1011_0010
	r := NewReader([]byte{0xB2})
	v, err := r.ReadBits(4, MSBFirst)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0b1011 {
		t.Errorf("MSB-first nibble got %04b, want 1011", v)
	}

	r2 := NewReader([]byte{0xB2})
	v2, err := r2.ReadBits(4, LSBFirst)
	if err != nil {
		t.Fatal(err)
	}
	if v2 != 0b0010 {
		t.Errorf("LSB-first nibble got %04b, want 0010", v2)
	}
}

func TestReaderArbitraryIntegerCrossesByteBoundary(t *testing.T) {
	// 12-bit value spanning two bytes: 0xAB, 0xC0 -> top 12 bits = 0xABC
	r := NewReader([]byte{0xAB, 0xC0})
	v, err := r.ReadBigInt(12, BigEndian, false)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xABC {
		t.Errorf("got %#x, want 0xabc", v)
	}
}

func TestReaderBigIntSigned(t *testing.T) {
	// 4-bit two's complement 0b1111 == -1
	r := NewReader([]byte{0xF0})
	v, err := r.ReadBigInt(4, BigEndian, true)
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Errorf("got %d, want -1", v)
	}
}

func TestReaderEOF(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.ReadUint32(BigEndian); err == nil {
		t.Fatal("expected EOF error")
	} else if be, ok := err.(*Error); !ok || be.Kind != KindEOF {
		t.Errorf("expected KindEOF, got %v", err)
	}
}

func TestWriterReaderRoundtripMixedWidths(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0b101, 3, MSBFirst)
	if err := w.WriteBigInt(-7, 5, BigEndian); err != nil {
		t.Fatal(err)
	}
	w.WriteUint16(0xCAFE, BigEndian)
	w.Flush()

	r := NewReader(w.Bytes())
	b1, err := r.ReadBits(3, MSBFirst)
	if err != nil || b1 != 0b101 {
		t.Fatalf("bits: %v %03b", err, b1)
	}
	v5, err := r.ReadBigInt(5, BigEndian, true)
	if err != nil || v5 != -7 {
		t.Fatalf("bigint: %v %d", err, v5)
	}
	v16, err := r.ReadUint16(BigEndian)
	if err != nil || v16 != 0xCAFE {
		t.Fatalf("uint16: %v %#x", err, v16)
	}
}

func TestWriterReserveAndPatch(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte{0xAA})
	offset := w.Reserve(2)
	w.WriteBytes([]byte{0xBB})
	w.PatchUint(offset, 2, 0x1234, BigEndian)

	want := []byte{0xAA, 0x12, 0x34, 0xBB}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %x, want %x", w.Bytes(), want)
	}
}

func TestReaderTextUntilThenBytes(t *testing.T) {
	r := NewReader([]byte("Mauro,rest"))
	s, err := r.ReadTextUntil(',', true, "UTF-8", nil)
	if err != nil {
		t.Fatal(err)
	}
	if s != "Mauro" {
		t.Errorf("got %q, want Mauro", s)
	}
	rest, err := r.ReadBytes(4)
	if err != nil || string(rest) != "rest" {
		t.Errorf("got %q, err %v", rest, err)
	}
}

func FuzzBigIntRoundtrip(f *testing.F) {
	f.Add(12, uint64(0xABC))
	f.Add(4, uint64(0xF))
	f.Add(64, uint64(0xFFFFFFFFFFFFFFFF))
	f.Add(1, uint64(1))

	f.Fuzz(func(t *testing.T, width int, value uint64) {
		if width < 1 || width > 64 {
			t.Skip()
		}
		mask := uint64(1)<<uint(width) - 1
		if width == 64 {
			mask = ^uint64(0)
		}
		value &= mask

		w := NewWriter()
		if err := w.WriteBigInt(int64(value), width, BigEndian); err != nil {
			t.Fatal(err)
		}
		w.Flush()

		r := NewReader(w.Bytes())
		got, err := r.ReadBigInt(width, BigEndian, false)
		if err != nil {
			t.Fatal(err)
		}
		if uint64(got) != value {
			t.Errorf("width %d: got %#x, want %#x", width, got, value)
		}
	})
}

package boxon

import "math"

// ByteOrder selects how whole bytes of a multi-byte value are assembled.
// It has no effect below one byte: ReadBits consumes sub-byte runs per
// BitOrder, ReadBigInt always MSB-first (see DESIGN.md's Open Question
// resolution on little-endian arbitrary-width integers).
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// BitOrder selects how the bits within a partial byte are consumed or
// produced when a read or write is not a multiple of 8 bits.
type BitOrder int

const (
	// MSBFirst takes the most significant unread bit of the current byte first.
	MSBFirst BitOrder = iota
	// LSBFirst takes the least significant unread bit of the current byte first.
	LSBFirst
)

// Reader provides sequential, sub-byte-accurate access to an encoded frame.
// Position is tracked in bits; byte-aligned helpers are built on top of the
// same bit-level primitive so that a read started mid-byte assembles
// correctly across byte boundaries.
type Reader struct {
	data   []byte
	bitpos int // cursor, in bits, from the start of data
	mark   int // saved bit position, set by SetMark and read by BytesFromMark
}

// NewReader wraps a byte slice for bit-accurate sequential reads.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current cursor position in bytes. Only meaningful
// when the cursor is byte-aligned; callers that need bit precision should
// use PositionBits.
func (r *Reader) Position() int { return r.bitpos / 8 }

// PositionBits returns the current cursor position in bits.
func (r *Reader) PositionBits() int { return r.bitpos }

// SetPosition moves the cursor to a byte-aligned position.
func (r *Reader) SetPosition(bytePos int) { r.bitpos = bytePos * 8 }

// SetPositionBits moves the cursor to an arbitrary bit position.
func (r *Reader) SetPositionBits(bitPos int) { r.bitpos = bitPos }

// Array returns the whole underlying byte slice, for checksum span extraction.
func (r *Reader) Array() []byte { return r.data }

// Len returns the total length of the underlying buffer in bytes.
func (r *Reader) Len() int { return len(r.data) }

// BitsLeft reports how many unread bits remain in the buffer.
func (r *Reader) BitsLeft() int { return len(r.data)*8 - r.bitpos }

// BytesLeft reports how many unread whole bytes remain, rounding down.
func (r *Reader) BytesLeft() int { return r.BitsLeft() / 8 }

// SetMark records the current bit position for a later BytesFromMark call.
func (r *Reader) SetMark() { r.mark = r.bitpos }

// BytesFromMark returns the byte-aligned span between the mark and the
// current position. Both must be byte-aligned or the span is truncated to
// whole bytes.
func (r *Reader) BytesFromMark() []byte {
	return r.data[r.mark/8 : r.bitpos/8]
}

// readRawBits consumes n bits (0 <= n <= 64) MSB-first, i.e. each newly
// consumed bit becomes the new least significant bit of the accumulator.
// This is the byte-order-agnostic primitive every other read is built from.
func (r *Reader) readRawBits(n int) (uint64, error) {
	if n < 0 {
		return 0, newErrAt(KindOutOfRange, r.Position(), "negative bit count")
	}
	if n > 64 {
		return 0, newErrAt(KindOutOfRange, r.Position(), "bit count exceeds 64")
	}
	if n > r.BitsLeft() {
		return 0, newErrAt(KindEOF, r.Position(), "read past end of buffer")
	}

	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := r.bitpos / 8
		bitIdx := r.bitpos % 8
		bit := (r.data[byteIdx] >> (7 - bitIdx)) & 1
		v = (v << 1) | uint64(bit)
		r.bitpos++
	}
	return v, nil
}

// readRawBitsLSB is the LSB-first counterpart: the k-th bit consumed becomes
// bit k of the result (see spec.md §4.A's bitset bit-order contract).
func (r *Reader) readRawBitsLSB(n int) (uint64, error) {
	if n < 0 {
		return 0, newErrAt(KindOutOfRange, r.Position(), "negative bit count")
	}
	if n > 64 {
		return 0, newErrAt(KindOutOfRange, r.Position(), "bit count exceeds 64")
	}
	if n > r.BitsLeft() {
		return 0, newErrAt(KindEOF, r.Position(), "read past end of buffer")
	}

	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := r.bitpos / 8
		bitIdx := r.bitpos % 8
		bit := (r.data[byteIdx] >> bitIdx) & 1
		v |= uint64(bit) << i
		r.bitpos++
	}
	return v, nil
}

// ReadBits consumes n bits as an ordered bit-set, honoring bitOrder per
// spec.md §4.A: big-endian bit-order is MSB-first within each consumed
// byte, little-endian bit-order is LSB-first.
func (r *Reader) ReadBits(n int, order BitOrder) (uint64, error) {
	if n <= 0 {
		return 0, newErrAt(KindOutOfRange, r.Position(), "bit count must be positive")
	}
	if order == LSBFirst {
		return r.readRawBitsLSB(n)
	}
	return r.readRawBits(n)
}

// readByteAligned assembles a byte-order-aware unsigned integer of width
// bits (a multiple of 8) out of sequential MSB-first byte reads. Per
// spec.md §4.A, byte-aligned primitives auto-assemble across a non-aligned
// cursor: the bit-level primitive underneath makes that automatic.
func (r *Reader) readByteAligned(width int, order ByteOrder) (uint64, error) {
	nbytes := width / 8
	bs := make([]byte, nbytes)
	for i := 0; i < nbytes; i++ {
		b, err := r.readRawBits(8)
		if err != nil {
			return 0, err
		}
		bs[i] = byte(b)
	}

	var v uint64
	if order == BigEndian {
		for _, b := range bs {
			v = (v << 8) | uint64(b)
		}
	} else {
		for i := nbytes - 1; i >= 0; i-- {
			v = (v << 8) | uint64(bs[i])
		}
	}
	return v, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.readByteAligned(8, BigEndian)
	return uint8(v), err
}

// ReadUint16 reads an unsigned 16-bit integer with the given byte order.
func (r *Reader) ReadUint16(order ByteOrder) (uint16, error) {
	v, err := r.readByteAligned(16, order)
	return uint16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer with the given byte order.
func (r *Reader) ReadUint32(order ByteOrder) (uint32, error) {
	v, err := r.readByteAligned(32, order)
	return uint32(v), err
}

// ReadUint64 reads an unsigned 64-bit integer with the given byte order.
func (r *Reader) ReadUint64(order ByteOrder) (uint64, error) {
	return r.readByteAligned(64, order)
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.readByteAligned(8, BigEndian)
	return int8(v), err
}

// ReadInt16 reads a signed 16-bit integer with the given byte order.
func (r *Reader) ReadInt16(order ByteOrder) (int16, error) {
	v, err := r.readByteAligned(16, order)
	return int16(v), err
}

// ReadInt32 reads a signed 32-bit integer with the given byte order.
func (r *Reader) ReadInt32(order ByteOrder) (int32, error) {
	v, err := r.readByteAligned(32, order)
	return int32(v), err
}

// ReadInt64 reads a signed 64-bit integer with the given byte order.
func (r *Reader) ReadInt64(order ByteOrder) (int64, error) {
	v, err := r.readByteAligned(64, order)
	return int64(v), err
}

// ReadBigInt reads an arbitrary-width (1..64 bit) integer, sign-extending
// from bit n-1 when signed is true. Byte order only reorders whole bytes;
// below one byte it is a no-op and bit order (always MSB-first consumption
// here, per the Open Question resolution in DESIGN.md) governs consumption.
func (r *Reader) ReadBigInt(n int, order ByteOrder, signed bool) (int64, error) {
	if n <= 0 {
		return 0, newErrAt(KindOutOfRange, r.Position(), "bigint width must be positive")
	}
	if n > 64 {
		return 0, newErrAt(KindOutOfRange, r.Position(), "bigint width exceeds 64 bits")
	}

	var raw uint64
	var err error
	if n%8 == 0 && order == LittleEndian {
		raw, err = r.readByteAligned(n, LittleEndian)
	} else {
		raw, err = r.readRawBits(n)
	}
	if err != nil {
		return 0, err
	}

	if !signed {
		return int64(raw), nil
	}
	if raw&(1<<(uint(n)-1)) != 0 {
		return int64(raw) - int64(1<<uint(n)), nil
	}
	return int64(raw), nil
}

// ReadFloat32 reads an IEEE-754 single-precision float with the given byte order.
func (r *Reader) ReadFloat32(order ByteOrder) (float32, error) {
	v, err := r.readByteAligned(32, order)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// ReadFloat64 reads an IEEE-754 double-precision float with the given byte order.
func (r *Reader) ReadFloat64(order ByteOrder) (float64, error) {
	v, err := r.readByteAligned(64, order)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes consumes n whole bytes. A byte-aligned cursor returns a subslice
// of the buffer; a mid-byte cursor assembles each byte from 8 bits, MSB-first.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, newErrAt(KindOutOfRange, r.Position(), "negative byte count")
	}
	if r.bitpos%8 != 0 {
		// fall back to the bit-level primitive so a mid-byte cursor still works
		out := make([]byte, n)
		for i := range out {
			v, err := r.readRawBits(8)
			if err != nil {
				return nil, err
			}
			out[i] = byte(v)
		}
		return out, nil
	}
	byteStart := r.bitpos / 8
	if byteStart+n > len(r.data) {
		return nil, newErrAt(KindEOF, byteStart, "read past end of buffer")
	}
	r.bitpos += n * 8
	return r.data[byteStart : byteStart+n], nil
}

// Skip advances the cursor by n bits without producing a value.
func (r *Reader) Skip(nbits int) error {
	if nbits < 0 {
		return newErrAt(KindOutOfRange, r.Position(), "negative skip size")
	}
	if nbits > r.BitsLeft() {
		return newErrAt(KindEOF, r.Position(), "skip past end of buffer")
	}
	r.bitpos += nbits
	return nil
}

// SkipUntil advances the cursor to the first occurrence of terminator,
// optionally consuming it. The cursor must be byte-aligned on entry.
func (r *Reader) SkipUntil(terminator byte, consume bool) error {
	start := r.bitpos / 8
	for i := start; i < len(r.data); i++ {
		if r.data[i] == terminator {
			end := i
			if consume {
				end++
			}
			r.bitpos = end * 8
			return nil
		}
	}
	return newErrAt(KindEOF, start, "terminator not found")
}

// ReadTextFixed reads n bytes and decodes them via the named charset,
// resolved through charsets (nil consults only the built-in charsets).
func (r *Reader) ReadTextFixed(n int, charset string, charsets *charsetRegistry) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	cs, err := charsets.lookup(charset)
	if err != nil {
		return "", err
	}
	s, err := cs.Decode(b)
	if err != nil {
		return "", wrapErrAt(KindInvalidCharset, r.Position(), "charset decode failed", err)
	}
	return s, nil
}

// ReadTextUntil reads bytes up to (excluding) terminator and decodes them
// via the named charset, resolved through charsets (nil consults only the
// built-in charsets). The terminator remains in the buffer unless consume
// is true.
func (r *Reader) ReadTextUntil(terminator byte, consume bool, charset string, charsets *charsetRegistry) (string, error) {
	start := r.bitpos / 8
	idx := -1
	for i := start; i < len(r.data); i++ {
		if r.data[i] == terminator {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", newErrAt(KindEOF, start, "terminator not found")
	}

	raw := r.data[start:idx]
	cs, err := charsets.lookup(charset)
	if err != nil {
		return "", err
	}
	s, err := cs.Decode(raw)
	if err != nil {
		return "", wrapErrAt(KindInvalidCharset, start, "charset decode failed", err)
	}

	end := idx
	if consume {
		end++
	}
	r.bitpos = end * 8
	return s, nil
}

// PeekBytes returns (without consuming) up to n bytes starting at the
// current byte-aligned position, truncated if fewer remain.
func (r *Reader) PeekBytes(n int) []byte {
	start := r.bitpos / 8
	end := start + n
	if end > len(r.data) {
		end = len(r.data)
	}
	if start >= end {
		return nil
	}
	return r.data[start:end]
}

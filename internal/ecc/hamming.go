// internal/ecc/hamming.go
package ecc

// Hamming(7,4) SECDED codec.
//
// Codeword layout, bit 0 first:
//
//	p0 p1 d0 p2 d1 d2 d3
//
// Parity positions 1, 2 and 4 (1-based) cover the standard subsets, so a
// nonzero syndrome is the 1-based position of a single flipped bit.
// Bit 7 of a codeword byte is not part of the code and is ignored.
//
// A double flip is NOT reliably detected: it can decode to a wrong nibble
// reported as corrected. That is inherent to (7,4) and is left as-is.

// CodewordMask selects the seven code bits of a codeword byte.
const CodewordMask byte = 0x7F

// Encode returns the 7-bit codeword for the low nibble of data.
func Encode(data byte) byte {
	d0 := data & 1
	d1 := (data >> 1) & 1
	d2 := (data >> 2) & 1
	d3 := (data >> 3) & 1

	p0 := d0 ^ d1 ^ d3
	p1 := d0 ^ d2 ^ d3
	p2 := d1 ^ d2 ^ d3

	return p0 | p1<<1 | d0<<2 | p2<<3 | d1<<4 | d2<<5 | d3<<6
}

// Decode returns the nibble carried by cw and whether a bit was flipped to get it.
func Decode(cw byte) (byte, bool) {
	bit := func(i uint) byte { return (cw >> i) & 1 }

	s0 := bit(0) ^ bit(2) ^ bit(4) ^ bit(6)
	s1 := bit(1) ^ bit(2) ^ bit(5) ^ bit(6)
	s2 := bit(3) ^ bit(4) ^ bit(5) ^ bit(6)

	syndrome := s0 | s1<<1 | s2<<2

	corrected := false
	if syndrome != 0 {
		cw ^= 1 << (syndrome - 1)
		corrected = true
	}

	return bit(2) | bit(4)<<1 | bit(5)<<2 | bit(6)<<3, corrected
}

// EncodeByte splits b into two codewords: low nibble first.
func EncodeByte(b byte) (lo, hi byte) {
	return Encode(b & 0x0F), Encode(b >> 4)
}

// DecodeByte reassembles a byte from its low and high nibble codewords.
func DecodeByte(lo, hi byte) (byte, bool) {
	l, cl := Decode(lo)
	h, ch := Decode(hi)
	return l&0x0F | (h&0x0F)<<4, cl || ch
}

package suoserial

const hexDigits = "0123456789ABCDEF"

// InvalidNibble is returned by DecodeNibble for non hex characters.
const InvalidNibble byte = 0xff

// DecodeNibble converts an ASCII hex digit to its value.
func DecodeNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return InvalidNibble
}

// DecodeByte combines two hex digits. The value is always computed, ok is
// false if either digit is invalid.
func DecodeByte(hi, lo byte) (b byte, ok bool) {
	h, l := DecodeNibble(hi), DecodeNibble(lo)
	return (h << 4) | l, h != InvalidNibble && l != InvalidNibble
}

// DecodeHex decodes len(src)/2 bytes into dst and returns the number of
// bytes written. dst must hold at least len(src)/2 bytes.
// In strict mode decoding stops at the first invalid digit with a
// *HexError, otherwise invalid digits decode to garbage values.
func DecodeHex(dst []byte, src string, strict bool) (int, error) {
	n := len(src) / 2
	for i := 0; i < n; i++ {
		b, ok := DecodeByte(src[2*i], src[2*i+1])
		if !ok && strict {
			off := 2 * i
			if DecodeNibble(src[off]) != InvalidNibble {
				off++
			}
			return i, &HexError{Offset: off, Char: src[off]}
		}
		dst[i] = b
	}
	return n, nil
}

// EncodeHex encodes src in uppercase hex.
func EncodeHex(src []byte) string {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		out[2*i], out[2*i+1] = hexDigits[b>>4], hexDigits[b&0x0f]
	}
	return string(out)
}

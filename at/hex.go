package at

const hexDigits = "0123456789ABCDEF"

// AppendHex appends the upper-case hex form of src to dst, high nibble
// first, and returns the extended slice.
func AppendHex(dst, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return dst
}

// EncodeHex returns the upper-case hex form of src. The result is always
// exactly twice as long as src.
func EncodeHex(src []byte) string {
	return string(AppendHex(make([]byte, 0, len(src)*2), src))
}

// DecodeNibble converts a single hex digit to its value. Both cases are
// accepted. Any other byte reports false, which decoders treat as the end
// of the hex run rather than as an error.
func DecodeNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// DecodeRun decodes the run of hex pairs at the start of src into dst and
// returns the number of bytes written.
//
// Decoding stops at the first non-hex character, at an unpaired trailing
// digit, at the end of src, or once max bytes (bounded by len(dst)) have
// been produced. A pair is only written when both of its digits are valid.
func DecodeRun(dst []byte, src string, max int) int {
	if max > len(dst) {
		max = len(dst)
	}

	n := 0
	for i := 0; n < max && i+1 < len(src); i += 2 {
		hi, ok := DecodeNibble(src[i])
		if !ok {
			break
		}
		lo, ok := DecodeNibble(src[i+1])
		if !ok {
			break
		}
		dst[n] = hi<<4 | lo
		n++
	}
	return n
}

// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package ustar

// fieldParser accumulates the first error encountered while decoding a
// sequence of fields out of one header block, so call sites can chain
// several parseNumeric/parseString calls and check the error once at the
// end, mirroring the sticky-error parser the teacher's own reader.go
// drives via its (unexported, not present in the retrieval pack) parser
// type.
type fieldParser struct {
	err error
}

// parseString extracts a NUL-terminated byte string from a fixed-width
// field. Per spec.md §6, string fields are raw byte strings and must be
// passed through faithfully; this never rejects non-UTF-8 content.
func (p *fieldParser) parseString(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// parseNumeric decodes a NUL/space-padded octal field into an int64,
// recording the first error seen. Per spec.md §4.2 step 3, this tolerates
// leading/trailing NUL and space padding and demands at least one octal
// digit.
func (p *fieldParser) parseNumeric(b []byte) int64 {
	if p.err != nil {
		return 0
	}
	v, err := parseOctal(b)
	if err != nil {
		p.err = err
		return 0
	}
	return v
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// parseOctal implements the octal decoder required by spec.md §4.2 step 3
// and exercised by the universal invariant in spec.md §8: any string of up
// to 21 valid octal digits, with arbitrary NUL/space padding, maps to its
// canonical integer value; any non-octal, non-padding character is
// rejected with KindInvalidHeader. Overflow past 2^64/8 is rejected, per
// spec.md §4.2 step 3.
func parseOctal(b []byte) (int64, error) {
	// Trim leading and trailing NUL/space padding; padding may appear on
	// either side and in any combination, per spec.md §6.
	start, end := 0, len(b)
	for start < end && (b[start] == 0 || b[start] == ' ') {
		start++
	}
	for end > start && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	if start == end {
		return 0, errf(KindInvalidHeader, "octal field has no digits")
	}

	const maxBeforeOverflow = (1<<64 - 1) / 8
	var v uint64
	for _, c := range b[start:end] {
		if c < '0' || c > '7' {
			return 0, errf(KindInvalidHeader, "invalid octal digit %q", c)
		}
		if v > maxBeforeOverflow {
			return 0, errf(KindInvalidHeader, "octal field overflows 64 bits")
		}
		v = v<<3 | uint64(c-'0')
	}
	return int64(v), nil
}

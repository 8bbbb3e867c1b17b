package stream

import "unicode/utf8"

// textDecoder converts raw transport chunks to text. A multi-byte sequence
// split across chunks is held back until the chunk that completes it arrives.
type textDecoder struct {
	carry []byte
}

func (d *textDecoder) Decode(p []byte) string {
	if len(d.carry) == 0 {
		cut := incompleteSuffix(p)
		d.carry = append(d.carry, p[len(p)-cut:]...)
		return string(p[:len(p)-cut])
	}
	buf := append(d.carry, p...)
	cut := incompleteSuffix(buf)
	text := string(buf[:len(buf)-cut])
	d.carry = append([]byte(nil), buf[len(buf)-cut:]...)
	return text
}

// Flush returns whatever is still held back, even if it is not valid UTF-8.
func (d *textDecoder) Flush() string {
	text := string(d.carry)
	d.carry = nil
	return text
}

// incompleteSuffix reports how many trailing bytes of b form the start of a
// multi-byte sequence that is not complete yet.
func incompleteSuffix(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if c >= utf8.RuneSelf && !utf8.FullRune(b[len(b)-i:]) {
			return i
		}
		return 0
	}
	return 0
}

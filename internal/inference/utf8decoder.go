package inference

import "unicode/utf8"

// incrementalUTF8Decoder accumulates raw token bytes across decode steps
// and only releases complete runes, since individual model tokens may split
// a multi-byte UTF-8 sequence.
type incrementalUTF8Decoder struct {
	pending []byte
}

// push appends raw bytes and returns every complete rune received so far,
// dropping invalid bytes and retaining any trailing incomplete sequence for
// the next call.
func (d *incrementalUTF8Decoder) push(b []byte) string {
	d.pending = append(d.pending, b...)

	var out []byte
	i := 0
	for i < len(d.pending) {
		r, size := utf8.DecodeRune(d.pending[i:])
		if r == utf8.RuneError && size <= 1 {
			// Either truly invalid, or an incomplete sequence at the tail.
			if !utf8.FullRune(d.pending[i:]) {
				break
			}
			i++ // invalid single byte: skip rather than stall forever
			continue
		}
		out = append(out, d.pending[i:i+size]...)
		i += size
	}

	d.pending = append([]byte(nil), d.pending[i:]...)
	return string(out)
}

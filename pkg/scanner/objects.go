package scanner

// SplitObjects splits back-to-back JSON objects by tracking '{' '}' depth.
//
// Braces inside quoted string values are not skipped, so a string containing
// a brace mis-frames the buffer. clean is false when anything but whitespace
// is left outside the returned objects, an unterminated trailing object included.
func SplitObjects(buf []byte) (objects [][]byte, clean bool) {
	var (
		depth int
		start int
	)
	clean = true
	for i, c := range buf {
		switch {
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}' && depth > 0:
			depth--
			if depth == 0 {
				objects = append(objects, buf[start:i+1])
			}
		case depth == 0 && !IsSpace(c):
			clean = false
		}
	}
	if depth != 0 {
		clean = false
	}
	return objects, clean
}

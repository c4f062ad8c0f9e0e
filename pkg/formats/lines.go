package formats

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds one physical line. Exported OBJ files put whole faces on a
// single line, so the bufio default of 64K is too small for large polygons.
const maxLineSize = 16 << 20

// lineReader yields whitespace-separated fields of logical lines.
// A physical line ending in a backslash continues on the next one, '#' starts
// a comment that runs to the end of the logical line, and blank lines are skipped.
type lineReader struct {
	scanner *bufio.Scanner
	line    int // physical lines consumed so far
}

func newLineReader(r io.Reader) *lineReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineReader{scanner: s}
}

// next returns the fields of the next non-empty logical line and the physical
// line number it started on. ok is false at end of input or on a read error.
func (lr *lineReader) next() (fields []string, start int, ok bool) {
	for {
		var logical strings.Builder
		start = lr.line + 1
		read := false
		for lr.scanner.Scan() {
			read = true
			lr.line++
			text := strings.TrimSuffix(lr.scanner.Text(), "\r")
			if strings.HasSuffix(text, "\\") {
				logical.WriteString(text[:len(text)-1])
				logical.WriteByte(' ')
				continue
			}
			logical.WriteString(text)
			break
		}
		if !read {
			return nil, 0, false
		}

		text := logical.String()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields = strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		return fields, start, true
	}
}

func (lr *lineReader) err() error {
	return lr.scanner.Err()
}

package output

import (
	"bytes"
	"sync"
)

// maxLineLength bounds the partial line buffer. A line longer than
// this is emitted in pieces.
const maxLineLength = 64 * 1024

// Line is a complete line of worker output after filtering.
type Line struct {
	// Text is the line with framing removed. It is empty if the
	// line consisted of filler only.
	Text string

	// Marker is the artifact path announced on this line, if any.
	Marker string
}

// LineWriter is an io.Writer that reassembles lines split across
// writes, filters them and hands them to a callback. Markers are
// matched on the raw line, so filler around them does not matter.
type LineWriter struct {
	filter *Filter
	handle func(Line)

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter returns a writer that reports every complete line
// to handle.
func NewLineWriter(filter *Filter, handle func(Line)) *LineWriter {
	return &LineWriter{
		filter: filter,
		handle: handle,
	}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf.Write(p)

	var lines []string
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}

		lines = append(lines, string(w.buf.Next(i+1)[:i]))
	}

	if w.buf.Len() > maxLineLength {
		lines = append(lines, w.buf.String())
		w.buf.Reset()
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.emit(line)
	}

	return len(p), nil
}

// Flush emits the trailing partial line, if any. It is called once
// the underlying stream has ended.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	rest := w.buf.String()
	w.buf.Reset()
	w.mu.Unlock()

	if rest != "" {
		w.emit(rest)
	}
}

func (w *LineWriter) emit(raw string) {
	line := Line{Text: w.filter.StripFraming(raw)}

	if path, ok := w.filter.ExtractCompletionMarker(raw); ok {
		line.Marker = path
	}

	if line.Text == "" && line.Marker == "" {
		return
	}

	w.handle(line)
}

package output_test

import (
	"strings"
	"testing"

	"github.com/lambda-feedback/tether/internal/execution/output"
	"github.com/stretchr/testify/assert"
)

func collect(t *testing.T) (*output.LineWriter, *[]output.Line) {
	var lines []output.Line
	w := output.NewLineWriter(newFilter(t), func(l output.Line) {
		lines = append(lines, l)
	})
	return w, &lines
}

func TestLineWriter_InterleavedFiller(t *testing.T) {
	w, lines := collect(t)

	_, _ = w.Write([]byte("****\nfirst line\n**\n***second line\n"))
	_, _ = w.Write([]byte("*****\n"))
	w.Flush()

	assert.Equal(t, []output.Line{
		{Text: "first line"},
		{Text: "second line"},
	}, *lines)
}

func TestLineWriter_ReassemblesSplitLines(t *testing.T) {
	w, lines := collect(t)

	_, _ = w.Write([]byte("hel"))
	_, _ = w.Write([]byte("lo wor"))
	assert.Empty(t, *lines)

	_, _ = w.Write([]byte("ld\n"))

	assert.Equal(t, []output.Line{{Text: "hello world"}}, *lines)
}

func TestLineWriter_MarkerSplitAcrossChunks(t *testing.T) {
	w, lines := collect(t)

	chunks := []string{
		"***\nTrace Comp",
		"lete (Duration : 3.1s; Out",
		"put : /tmp/run/out.trace)\n***",
	}

	for _, c := range chunks {
		_, _ = w.Write([]byte(c))
	}
	w.Flush()

	if assert.Len(t, *lines, 1) {
		assert.Equal(t, "/tmp/run/out.trace", (*lines)[0].Marker)
		assert.True(t, strings.HasPrefix((*lines)[0].Text, "Trace Complete"))
	}
}

func TestLineWriter_Flush_EmitsPartialLine(t *testing.T) {
	w, lines := collect(t)

	_, _ = w.Write([]byte("no newline"))
	w.Flush()
	w.Flush()

	assert.Equal(t, []output.Line{{Text: "no newline"}}, *lines)
}

func TestLineWriter_StripsCarriageReturn(t *testing.T) {
	w, lines := collect(t)

	_, _ = w.Write([]byte("windows line\r\n"))

	assert.Equal(t, []output.Line{{Text: "windows line"}}, *lines)
}

func TestLineWriter_LongLineIsBounded(t *testing.T) {
	w, lines := collect(t)

	long := strings.Repeat("x", 70*1024)
	n, err := w.Write([]byte(long))

	assert.NoError(t, err)
	assert.Equal(t, len(long), n)
	assert.Len(t, *lines, 1)
}

func TestLineWriter_MatchesStripFraming(t *testing.T) {
	w, lines := collect(t)
	f := newFilter(t)

	in := "****\nstarting script\n***  loaded 3 tests\nresult: 2 * 3 = 6\n*\r\n\tindented\n"
	_, _ = w.Write([]byte(in))

	texts := make([]string, 0, len(*lines))
	for _, l := range *lines {
		texts = append(texts, l.Text)
	}

	assert.Equal(t, f.StripFraming(in), strings.Join(texts, "\n"))
}

// Package output normalizes the chatty stdout and stderr of the worker.
package output

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultFiller is the heartbeat character the worker prints
	// while it is busy.
	DefaultFiller = "*"

	// DefaultMarker matches the line the worker prints once it has
	// written its artifact, e.g.
	//
	//	Trace Complete (Duration : 4.2s; Output : /tmp/run/out.trace)
	DefaultMarker = `Trace Complete[^\n]*Output : ([^\n)]+)\)`
)

var ErrInvalidMarker = errors.New("marker pattern must have exactly one capture group")

// Config describes how worker output is normalized.
type Config struct {
	// Filler is the character the worker repeats as a liveness
	// heartbeat. Runs of it are removed from the output.
	Filler string `conf:"filler"`

	// Marker is a regular expression with exactly one capture group,
	// matching the artifact path announced by the worker.
	Marker string `conf:"marker"`
}

// Filter strips framing noise from worker output and extracts the
// completion marker. A Filter is stateless and safe for concurrent use.
type Filter struct {
	filler string
	marker *regexp.Regexp
}

// New creates a filter, falling back to the defaults for empty fields.
func New(config Config) (*Filter, error) {
	filler := config.Filler
	if filler == "" {
		filler = DefaultFiller
	}

	pattern := config.Marker
	if pattern == "" {
		pattern = DefaultMarker
	}

	marker, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid marker pattern: %w", err)
	}

	if marker.NumSubexp() != 1 {
		return nil, ErrInvalidMarker
	}

	return &Filter{
		filler: filler,
		marker: marker,
	}, nil
}

// StripFraming removes leading and standalone filler runs from every
// line in chunk. Lines left empty are dropped.
func (f *Filter) StripFraming(chunk string) string {
	lines := strings.Split(chunk, "\n")

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if stripped, ok := f.stripLine(line); ok {
			kept = append(kept, stripped)
		}
	}

	return strings.Join(kept, "\n")
}

// ExtractCompletionMarker returns the artifact path announced in text.
// If text contains more than one marker, the last one wins.
func (f *Filter) ExtractCompletionMarker(text string) (string, bool) {
	matches := f.marker.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}

	path := strings.TrimSpace(matches[len(matches)-1][1])
	if path == "" {
		return "", false
	}

	return path, true
}

func (f *Filter) stripLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")

	trimmed := strings.TrimLeft(line, f.filler)
	if len(trimmed) != len(line) {
		trimmed = strings.TrimLeft(trimmed, " \t")
	}

	if strings.TrimSpace(trimmed) == "" {
		return "", false
	}

	return trimmed, true
}

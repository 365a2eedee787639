// Package params extracts control unit settings from an image's generation
// parameters text.
//
// The text holds zero or more segments of the form
//
//	ControlNet 0: "preprocessor: canny, model: control_v11p, weight: 1.0"
//
// Each quoted body is a comma separated list of "key: value" pairs. A value
// that starts with "(" runs to its matching ")" and may contain commas.
package params

import (
	"errors"
	"fmt"
	"strings"
)

// segmentPrefix opens a control unit segment.
const segmentPrefix = "ControlNet"

// ErrMalformed signals text that could not be fully parsed.
var ErrMalformed = errors.New("malformed parameters")

// SyntaxError locates a parse failure inside the parameters text.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrMalformed.Error(), e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrMalformed }

// Pair is one attribute of a control unit.
type Pair struct {
	Key   string
	Value string
}

// Unit is the ordered attribute list of one control unit segment.
type Unit []Pair

// Parse returns one Unit per ControlNet segment found in text.
// A malformed piece inside a segment is skipped up to the next comma and
// parsing continues, including later segments. The first failure is
// returned as a *SyntaxError alongside every unit that was recovered. An
// unterminated quote ends parsing.
func Parse(text string) ([]Unit, error) {
	var (
		units    []Unit
		firstErr error
	)
	pos := 0
	for {
		idx := strings.Index(text[pos:], segmentPrefix)
		if idx < 0 {
			return units, firstErr
		}
		start := pos + idx + len(segmentPrefix)

		// At least one non-quote byte must separate the prefix from the body.
		open := strings.IndexByte(text[start:], '"')
		if open < 0 {
			return units, firstErr
		}
		if open == 0 {
			pos = start
			continue
		}
		bodyStart := start + open + 1
		closeIdx := strings.IndexByte(text[bodyStart:], '"')
		if closeIdx < 0 {
			if firstErr == nil {
				firstErr = &SyntaxError{Offset: bodyStart - 1, Msg: "unterminated quote"}
			}
			return units, firstErr
		}
		body := text[bodyStart : bodyStart+closeIdx]
		pos = bodyStart + closeIdx + 1
		if body == "" {
			continue
		}

		unit, err := parsePairs(body, bodyStart)
		if len(unit) > 0 {
			units = append(units, unit)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

// parsePairs splits a segment body into pairs. base is the body's offset in
// the full text, used for error positions. Malformed pieces are dropped and
// the first of them is reported.
func parsePairs(body string, base int) (Unit, error) {
	var (
		unit     Unit
		firstErr error
	)
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	i := 0
	for i < len(body) {
		i = skipSpace(body, i)
		if i >= len(body) {
			break
		}

		colon := strings.IndexAny(body[i:], ":,")
		if colon < 0 || body[i+colon] == ',' {
			fail(&SyntaxError{Offset: base + i, Msg: "expected key followed by ':'"})
			i = nextPiece(body, i)
			continue
		}
		key := strings.TrimSpace(body[i : i+colon])
		i = skipSpace(body, i+colon+1)

		value, next, err := scanValue(body, i, base)
		if err != nil {
			fail(err)
			i = nextPiece(body, i)
			continue
		}
		i = next
		if key != "" && value != "" {
			unit = append(unit, Pair{Key: key, Value: value})
		}
	}
	return unit, firstErr
}

// nextPiece returns the index just past the comma that follows i, or the
// body length when there is none.
func nextPiece(body string, i int) int {
	comma := strings.IndexByte(body[i:], ',')
	if comma < 0 {
		return len(body)
	}
	return i + comma + 1
}

// scanValue reads one value starting at i and returns it with the index just
// past the separating comma.
func scanValue(body string, i, base int) (string, int, error) {
	if i < len(body) && body[i] == '(' {
		end, ok := matchParen(body, i)
		if !ok {
			return "", 0, &SyntaxError{Offset: base + i, Msg: "unbalanced parenthesis"}
		}
		rest := skipSpace(body, end+1)
		if rest >= len(body) {
			return body[i : end+1], rest, nil
		}
		if body[rest] == ',' {
			return body[i : end+1], rest + 1, nil
		}
		// Something trails the group, so the value is a plain run to the comma.
	}

	comma := strings.IndexByte(body[i:], ',')
	if comma < 0 {
		return strings.TrimSpace(body[i:]), len(body), nil
	}
	return strings.TrimSpace(body[i : i+comma]), i + comma + 1, nil
}

// matchParen returns the index of the ')' closing the '(' at open.
func matchParen(s string, open int) (int, bool) {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j, true
			}
		}
	}
	return 0, false
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

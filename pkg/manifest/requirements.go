package manifest

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/registry"
)

// minPinnedLines is the number of pin lines a file needs before it is
// accepted as a requirements list.
const minPinnedLines = 3

var (
	pinLineRE    = regexp.MustCompile(`^[a-z0-9_-]{1,50}==[a-z0-9-.]{1,20}(?:\s*(?:\\|--|;|#).+)?\s*$`)
	pinExtractRE = regexp.MustCompile(`^([a-z0-9_-]{1,50})==([a-z0-9-.]{1,20})`)
)

// pinLine is one line of a requirements file that has to be interpreted.
type pinLine struct {
	raw       string // line without its terminator
	trimmed   string
	continued bool // the previous line ended in a backslash
}

// scanPinLines walks data line by line, skipping blanks and comments and
// tracking backslash continuations. A blank or comment line ends a
// continuation.
func scanPinLines(data []byte, fn func(pinLine) bool) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	escaped := false
	for sc.Scan() {
		raw := strings.TrimRight(sc.Text(), "\r")
		wasEscaped := escaped
		escaped = false

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		escaped = strings.HasSuffix(trimmed, `\`)
		if !fn(pinLine{raw: raw, trimmed: trimmed, continued: wasEscaped}) {
			return nil
		}
	}
	return sc.Err()
}

// looksLikeRequirements reports whether every tested line is a lowercase pin
// and at least minPinnedLines lines were tested.
func looksLikeRequirements(data []byte) bool {
	matches := 0
	allMatch := true
	err := scanPinLines(data, func(l pinLine) bool {
		if l.continued {
			return true
		}
		if !pinLineRE.MatchString(l.raw) {
			allMatch = false
			return false
		}
		matches++
		return true
	})
	return err == nil && allMatch && matches >= minPinnedLines
}

// ParseRequirements reads a list of "name==version" pins. Continuation lines
// are skipped; flat lists carry neither dependency data nor direct flags.
func ParseRequirements(data []byte, reg registry.Registry) ([]Entry, error) {
	var (
		entries []Entry
		perr    error
	)
	err := scanPinLines(data, func(l pinLine) bool {
		if l.continued {
			return true
		}
		m := pinExtractRE.FindStringSubmatch(l.trimmed)
		if m == nil {
			if !isASCII(l.trimmed) {
				perr = errors.New(errors.ErrCodeInvalidEncoding, "Invalid characters in file")
			} else {
				perr = errors.New(errors.ErrCodeUnknownFormat, "not a pinned requirement: %q", l.trimmed)
			}
			return false
		}
		entries = append(entries, Entry{
			Name:       reg.Normalize(m[1]),
			Constraint: "==" + m[2],
			DependsOn:  UnknownDeps(),
			Direct:     DirectUnknown,
		})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidEncoding, err, "could not read requirements")
	}
	return entries, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

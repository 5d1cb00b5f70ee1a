package manifest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/depreview/depreview/pkg/errors"
)

var (
	majorRE = regexp.MustCompile(`^([0-9]+)(?:\.[0-9]+)*$`)
	minorRE = regexp.MustCompile(`^([0-9]+)(?:\.([0-9]+))?(?:\.[0-9]+)*$`)
)

// Translate converts a Poetry-style version specification into a normalized
// constraint that only uses "==", ">=" and "<" clauses joined by commas.
//
//	Translate("^1.2.3")    // ">=1.2.3,<2.0.0"
//	Translate("~1.2.3")    // ">=1.2.3,<1.3.0"
//	Translate("*")         // ""
//	Translate("1.2.3")     // "==1.2.3"
//
// A "*" clause anywhere makes the whole constraint unconstrained.
func Translate(spec string) (string, error) {
	var out []string
	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		switch {
		case clause == "":
			continue
		case clause == "*":
			return "", nil
		case strings.HasPrefix(clause, "^"):
			v := strings.TrimSpace(clause[1:])
			upper, err := nextMajor(v)
			if err != nil {
				return "", err
			}
			out = append(out, ">="+v, "<"+upper)
		case strings.HasPrefix(clause, "~"):
			v := strings.TrimSpace(clause[1:])
			upper, err := nextMinor(v)
			if err != nil {
				return "", err
			}
			out = append(out, ">="+v, "<"+upper)
		case strings.HasPrefix(clause, "=="):
			out = append(out, clause)
		case strings.HasPrefix(clause, "="):
			out = append(out, "=="+strings.TrimSpace(clause[1:]))
		case clause[0] == '>' || clause[0] == '<' || strings.HasPrefix(clause, "!="):
			out = append(out, clause)
		default:
			out = append(out, "=="+clause)
		}
	}
	return strings.Join(out, ","), nil
}

// nextMajor increments the leading integer: "1.2.3" -> "2.0.0". v must be a
// dotted run of integers.
func nextMajor(v string) (string, error) {
	m := majorRE.FindStringSubmatch(v)
	if m == nil {
		return "", errors.New(errors.ErrCodeInvalidVersionSpec, "invalid version %q", v)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidVersionSpec, err, "invalid version %q", v)
	}
	return strconv.Itoa(major+1) + ".0.0", nil
}

// nextMinor increments the second integer: "1.2.3" -> "1.3.0". A missing
// minor component counts as zero. v must be a dotted run of integers.
func nextMinor(v string) (string, error) {
	m := minorRE.FindStringSubmatch(v)
	if m == nil {
		return "", errors.New(errors.ErrCodeInvalidVersionSpec, "invalid version %q", v)
	}
	minor := 0
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidVersionSpec, err, "invalid version %q", v)
		}
		minor = n
	}
	return m[1] + "." + strconv.Itoa(minor+1) + ".0", nil
}

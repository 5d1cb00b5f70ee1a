package registry

import (
	"regexp"
	"strings"
)

// Op is a comparison operator in a constraint clause.
type Op string

// Operators understood by [Satisfies].
const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpGreaterEqual Op = ">="
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpLess         Op = "<"
)

// Clause is one comparison in a constraint.
type Clause struct {
	Op      Op
	Version string
}

func (c Clause) String() string {
	return string(c.Op) + c.Version
}

var clauseRE = regexp.MustCompile(`^(==|!=|>=|<=|>|<)?\s*(\S+)$`)

// ParseConstraint splits a comma-joined constraint into clauses. Empty
// clauses are dropped and a clause without an operator is treated as "==".
// Clauses that cannot be read are returned in bad.
func ParseConstraint(constraint string) (clauses []Clause, bad []string) {
	for _, part := range strings.Split(constraint, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := clauseRE.FindStringSubmatch(part)
		if m == nil {
			bad = append(bad, part)
			continue
		}
		op := Op(m[1])
		if op == "" {
			op = OpEqual
		}
		clauses = append(clauses, Clause{Op: op, Version: m[2]})
	}
	return clauses, bad
}

// Satisfies evaluates constraint against v using cmp for ordering. An empty
// constraint matches everything; a constraint with an unreadable clause
// matches nothing. An "==" clause ending in ".*" matches by prefix.
func Satisfies(cmp func(a, b string) int, v, constraint string) bool {
	clauses, bad := ParseConstraint(constraint)
	if len(bad) > 0 {
		return false
	}
	for _, c := range clauses {
		if !c.holds(cmp, v) {
			return false
		}
	}
	return true
}

func (c Clause) holds(cmp func(a, b string) int, v string) bool {
	if c.Op == OpEqual || c.Op == OpNotEqual {
		if prefix, ok := strings.CutSuffix(c.Version, ".*"); ok {
			in := v == prefix || strings.HasPrefix(v, prefix+".")
			return in == (c.Op == OpEqual)
		}
	}
	r := cmp(v, c.Version)
	switch c.Op {
	case OpEqual:
		return r == 0
	case OpNotEqual:
		return r != 0
	case OpGreaterEqual:
		return r >= 0
	case OpLessEqual:
		return r <= 0
	case OpGreater:
		return r > 0
	case OpLess:
		return r < 0
	}
	return false
}

package qbind

import (
	"strconv"
	"strings"
)

// stepKind distinguishes named property steps from indexer steps.
type stepKind int

const (
	stepName stepKind = iota
	stepIndex
)

// pathStep is one accessor of a PropertyPath.
type pathStep struct {
	kind stepKind
	// name is the property name for stepName, or the raw key for stepIndex
	name string
	// index is the parsed integer key, valid when isInt
	index int
	isInt bool
}

func (s pathStep) String() string {
	if s.kind == stepName {
		return s.name
	}
	if s.isInt {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return "[" + strconv.Quote(s.name) + "]"
}

// PropertyPath is a parsed, immutable property path such as
// "Owner.Address.City" or "Items[0].Name". The zero value is the empty
// path, which resolves to the source itself.
type PropertyPath struct {
	steps []pathStep
}

// ParsePath parses a dotted and indexed path expression. The empty
// expression and "." both denote the source itself.
func ParsePath(expr string) (PropertyPath, error) {
	if expr == "" || expr == "." {
		return PropertyPath{}, nil
	}

	p := &pathParser{expr: expr}
	steps, err := p.parse()
	if err != nil {
		return PropertyPath{}, err
	}
	return PropertyPath{steps: steps}, nil
}

// MustParsePath is like ParsePath but panics on malformed expressions. It is
// intended for paths written as constants.
func MustParsePath(expr string) PropertyPath {
	p, err := ParsePath(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of steps.
func (p PropertyPath) Len() int {
	return len(p.steps)
}

// IsEmpty reports whether p refers to the source itself.
func (p PropertyPath) IsEmpty() bool {
	return len(p.steps) == 0
}

// Parent returns the path without its final step.
func (p PropertyPath) Parent() PropertyPath {
	if len(p.steps) == 0 {
		return p
	}
	return PropertyPath{steps: p.steps[:len(p.steps)-1]}
}

// Last returns a printable form of the terminal step, or "" for the empty
// path.
func (p PropertyPath) Last() string {
	if len(p.steps) == 0 {
		return ""
	}
	last := p.steps[len(p.steps)-1]
	if last.kind == stepName {
		return last.name
	}
	return last.String()
}

func (p PropertyPath) String() string {
	var sb strings.Builder
	for i, s := range p.steps {
		if s.kind == stepName && i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

type pathParser struct {
	expr string
	pos  int
}

func (p *pathParser) fail(reason string) error {
	return &ParseError{Expr: p.expr, Pos: p.pos, Reason: reason}
}

func (p *pathParser) parse() ([]pathStep, error) {
	var steps []pathStep

	// A path may start with a name or an indexer, e.g. "[0].Name"
	if p.expr[0] == '[' {
		s, err := p.indexer()
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	} else {
		name, err := p.name()
		if err != nil {
			return nil, err
		}
		steps = append(steps, pathStep{kind: stepName, name: name})
	}

	for p.pos < len(p.expr) {
		switch p.expr[p.pos] {
		case '.':
			p.pos++
			if p.pos >= len(p.expr) {
				return nil, p.fail("empty segment after '.'")
			}
			name, err := p.name()
			if err != nil {
				return nil, err
			}
			steps = append(steps, pathStep{kind: stepName, name: name})
		case '[':
			s, err := p.indexer()
			if err != nil {
				return nil, err
			}
			steps = append(steps, s)
		case ']':
			return nil, p.fail("unbalanced ']'")
		default:
			return nil, p.fail("unexpected character " + strconv.QuoteRune(rune(p.expr[p.pos])))
		}
	}

	return steps, nil
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	case c >= 0x80:
		// Allow non-ASCII identifiers through untouched
		return true
	default:
		return false
	}
}

func (p *pathParser) name() (string, error) {
	start := p.pos
	for p.pos < len(p.expr) && isNameByte(p.expr[p.pos], p.pos == start) {
		p.pos++
	}
	if p.pos == start {
		if p.pos < len(p.expr) && (p.expr[p.pos] == '.' || p.expr[p.pos] == '[' || p.expr[p.pos] == ']') {
			return "", p.fail("empty segment")
		}
		if p.pos < len(p.expr) {
			return "", p.fail("invalid character " + strconv.QuoteRune(rune(p.expr[p.pos])) + " in name")
		}
		return "", p.fail("empty segment")
	}
	return p.expr[start:p.pos], nil
}

func (p *pathParser) indexer() (pathStep, error) {
	// p.expr[p.pos] == '['
	open := p.pos
	p.pos++
	if p.pos >= len(p.expr) {
		p.pos = open
		return pathStep{}, p.fail("unbalanced '['")
	}

	if c := p.expr[p.pos]; c == '"' || c == '\'' {
		end := p.pos + 1
		for end < len(p.expr) && p.expr[end] != c {
			if p.expr[end] == '\\' {
				end++
			}
			end++
		}
		if end >= len(p.expr) {
			return pathStep{}, p.fail("unterminated quoted key")
		}
		raw := p.expr[p.pos : end+1]
		if c == '\'' {
			raw = singleToDoubleQuoted(raw[1 : len(raw)-1])
		}
		key, err := strconv.Unquote(raw)
		if err != nil {
			return pathStep{}, p.fail("invalid quoted key")
		}
		p.pos = end + 1
		if p.pos >= len(p.expr) || p.expr[p.pos] != ']' {
			return pathStep{}, p.fail("unbalanced '['")
		}
		p.pos++
		return pathStep{kind: stepIndex, name: key}, nil
	}

	end := strings.IndexAny(p.expr[p.pos:], "[]")
	if end < 0 || p.expr[p.pos+end] == '[' {
		p.pos = open
		return pathStep{}, p.fail("unbalanced '['")
	}
	raw := strings.TrimSpace(p.expr[p.pos : p.pos+end])
	if raw == "" {
		return pathStep{}, p.fail("empty indexer")
	}
	p.pos += end + 1

	s := pathStep{kind: stepIndex, name: raw}
	if i, err := strconv.Atoi(raw); err == nil {
		s.index = i
		s.isInt = true
	}
	return s, nil
}

// singleToDoubleQuoted rewrites the body of a single-quoted key as a Go
// double-quoted literal: \' becomes a plain quote and bare " is escaped.
func singleToDoubleQuoted(body string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\\' && i+1 < len(body):
			i++
			if body[i] == '\'' {
				sb.WriteByte('\'')
			} else {
				sb.WriteByte('\\')
				sb.WriteByte(body[i])
			}
		case c == '"':
			sb.WriteString(`\"`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

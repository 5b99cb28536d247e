package mock

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
)

// evalQuery evaluates a CookieDB boolean query expression against one
// document. Expressions are function calls over $field references and
// literals, e.g. and(starts_with($name, "cookie"), gt($age, 18)).
func evalQuery(where string, doc cookiedb.Document) (bool, error) {
	p := &queryParser{input: where}
	value, err := p.parseExpr(doc)
	if err != nil {
		return false, fmt.Errorf("invalid query %q: %w", where, err)
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return false, fmt.Errorf("invalid query %q: trailing input at offset %d", where, p.pos)
	}
	result, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("query %q is not a boolean expression", where)
	}
	return result, nil
}

type queryParser struct {
	input string
	pos   int
}

func (p *queryParser) parseExpr(doc cookiedb.Document) (any, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch ch := p.input[p.pos]; {
	case ch == '"':
		return p.parseString()
	case ch == '$':
		p.pos++
		ref := p.readIdent(true)
		if ref == "" {
			return nil, fmt.Errorf("empty field reference")
		}
		return lookupPath(doc, ref), nil
	case ch == '-' || (ch >= '0' && ch <= '9'):
		return p.parseNumber()
	default:
		name := p.readIdent(false)
		if name == "" {
			return nil, fmt.Errorf("unexpected character %q at offset %d", ch, p.pos)
		}
		switch name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return p.parseCall(name, doc)
	}
}

func (p *queryParser) parseCall(name string, doc cookiedb.Document) (any, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return nil, fmt.Errorf("expected ( after %q", name)
	}
	p.pos++

	var args []any
	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		p.pos++
	} else {
		for {
			arg, err := p.parseExpr(doc)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpaces()
			if p.pos >= len(p.input) {
				return nil, fmt.Errorf("unterminated call to %q", name)
			}
			if p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.input[p.pos] == ')' {
				p.pos++
				break
			}
			return nil, fmt.Errorf("unexpected character %q in call to %q", p.input[p.pos], name)
		}
	}
	return applyFunc(name, args)
}

func applyFunc(name string, args []any) (any, error) {
	switch name {
	case "and", "or":
		if len(args) == 0 {
			return nil, fmt.Errorf("%s requires at least one argument", name)
		}
		result := name == "and"
		for i, arg := range args {
			b, ok := arg.(bool)
			if !ok {
				return nil, fmt.Errorf("%s argument %d is not boolean", name, i)
			}
			if name == "and" {
				result = result && b
			} else {
				result = result || b
			}
		}
		return result, nil
	case "not":
		if len(args) != 1 {
			return nil, fmt.Errorf("not requires exactly one argument")
		}
		b, ok := args[0].(bool)
		if !ok {
			return nil, fmt.Errorf("not argument is not boolean")
		}
		return !b, nil
	case "eq", "neq":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s requires exactly two arguments", name)
		}
		equal := equalValues(args[0], args[1])
		if name == "neq" {
			return !equal, nil
		}
		return equal, nil
	case "gt", "gte", "lt", "lte":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s requires exactly two arguments", name)
		}
		return compare(name, args[0], args[1])
	case "starts_with", "ends_with", "contains":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s requires exactly two arguments", name)
		}
		s, ok := args[0].(string)
		sub, okSub := args[1].(string)
		if !ok || !okSub {
			return nil, fmt.Errorf("%s requires string arguments", name)
		}
		switch name {
		case "starts_with":
			return strings.HasPrefix(s, sub), nil
		case "ends_with":
			return strings.HasSuffix(s, sub), nil
		default:
			return strings.Contains(s, sub), nil
		}
	case "to_lower", "to_upper":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s requires exactly one argument", name)
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s requires a string argument", name)
		}
		if name == "to_lower" {
			return strings.ToLower(s), nil
		}
		return strings.ToUpper(s), nil
	default:
		return nil, fmt.Errorf("unknown function %q", name)
	}
}

func compare(op string, a, b any) (bool, error) {
	if na, ok := asNumber(a); ok {
		nb, okb := asNumber(b)
		if !okb {
			return false, fmt.Errorf("%s operands must share a type", op)
		}
		switch op {
		case "gt":
			return na > nb, nil
		case "gte":
			return na >= nb, nil
		case "lt":
			return na < nb, nil
		default:
			return na <= nb, nil
		}
	}
	sa, ok := a.(string)
	sb, okb := b.(string)
	if !ok || !okb {
		return false, fmt.Errorf("%s operands must be numbers or strings", op)
	}
	switch op {
	case "gt":
		return sa > sb, nil
	case "gte":
		return sa >= sb, nil
	case "lt":
		return sa < sb, nil
	default:
		return sa <= sb, nil
	}
}

func (p *queryParser) parseString() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '\\':
			p.pos += 2
		case '"':
			p.pos++
			unquoted, err := strconv.Unquote(p.input[start:p.pos])
			if err != nil {
				return "", fmt.Errorf("bad string literal at offset %d: %w", start, err)
			}
			return unquoted, nil
		default:
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string literal at offset %d", start)
}

func (p *queryParser) parseNumber() (float64, error) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if (ch >= '0' && ch <= '9') || ch == '.' || ch == 'e' || ch == 'E' ||
			((ch == '+' || ch == '-') && (p.input[p.pos-1] == 'e' || p.input[p.pos-1] == 'E')) {
			p.pos++
			continue
		}
		break
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number literal at offset %d: %w", start, err)
	}
	return value, nil
}

func (p *queryParser) readIdent(allowDots bool) string {
	start := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') || ch == '_' || (allowDots && ch == '.') {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *queryParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n') {
		p.pos++
	}
}

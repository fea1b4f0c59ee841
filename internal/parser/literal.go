package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseLiteral reads a relaxed object literal of the kind models emit when
// they drift towards Python syntax: single- or double-quoted strings, bare
// keys, True/False/None, tuples and trailing commas. The value is then
// round-tripped through encoding/json so the result has exactly the shape a
// strict decode would produce.
func ParseLiteral(text string) (map[string]any, error) {
	p := &literalParser{src: []rune(text)}
	p.skipSpace()
	if p.peek() != '{' {
		return nil, p.errorf("expected '{'")
	}
	v, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing content")
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("re-encode literal: %w", err)
	}
	return DecodeObject(string(encoded))
}

const maxLiteralDepth = 64

type literalParser struct {
	src []rune
	pos int
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("literal offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *literalParser) value(depth int) (any, error) {
	if depth > maxLiteralDepth {
		return nil, p.errorf("nesting too deep")
	}
	p.skipSpace()
	switch r := p.peek(); {
	case r == '{':
		return p.object(depth)
	case r == '[':
		return p.sequence(depth, ']')
	case r == '(':
		return p.sequence(depth, ')')
	case r == '"' || r == '\'':
		return p.str()
	case r == '-' || r == '+' || r == '.' || unicode.IsDigit(r):
		return p.number()
	case isIdentStart(r):
		return p.keyword()
	case r == 0:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected %q", r)
	}
}

func (p *literalParser) object(depth int) (any, error) {
	p.pos++ // '{'
	obj := make(map[string]any)
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return obj, nil
		}

		key, err := p.key()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++

		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		obj[key] = v

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, p.errorf("expected ',' or '}'")
		}
	}
}

func (p *literalParser) key() (string, error) {
	switch r := p.peek(); {
	case r == '"' || r == '\'':
		return p.str()
	case r == '-' || unicode.IsDigit(r):
		n, err := p.number()
		if err != nil {
			return "", err
		}
		return fmt.Sprint(n), nil
	case isIdentStart(r):
		return p.ident(), nil
	default:
		return "", p.errorf("expected object key")
	}
}

func (p *literalParser) sequence(depth int, closer rune) (any, error) {
	p.pos++ // '[' or '('
	items := make([]any, 0)
	for {
		p.skipSpace()
		if p.peek() == closer {
			p.pos++
			return items, nil
		}

		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
		default:
			return nil, p.errorf("expected ',' or %q", closer)
		}
	}
}

func (p *literalParser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for !p.eof() {
		r := p.src[p.pos]
		p.pos++
		switch {
		case r == quote:
			return b.String(), nil
		case r == '\\':
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteRune(r)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *literalParser) escape(b *strings.Builder) error {
	r := p.src[p.pos]
	p.pos++
	switch r {
	case 'n':
		b.WriteRune('\n')
	case 't':
		b.WriteRune('\t')
	case 'r':
		b.WriteRune('\r')
	case 'b':
		b.WriteRune('\b')
	case 'f':
		b.WriteRune('\f')
	case '0':
		b.WriteRune(0)
	case 'u':
		if p.pos+4 > len(p.src) {
			return p.errorf("short unicode escape")
		}
		code, err := strconv.ParseUint(string(p.src[p.pos:p.pos+4]), 16, 32)
		if err != nil {
			return p.errorf("bad unicode escape")
		}
		p.pos += 4
		b.WriteRune(rune(code))
	case '\n':
		// line continuation
	default:
		// \\, \', \" and unknown escapes keep the escaped rune
		b.WriteRune(r)
	}
	return nil
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	for !p.eof() {
		r := p.src[p.pos]
		if unicode.IsDigit(r) || strings.ContainsRune("+-.eE_", r) {
			p.pos++
			continue
		}
		break
	}
	raw := strings.ReplaceAll(string(p.src[start:p.pos]), "_", "")
	raw = strings.TrimPrefix(raw, "+")
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, p.errorf("bad number %q", raw)
	}
	return f, nil
}

func (p *literalParser) keyword() (any, error) {
	start := p.pos
	word := p.ident()
	switch word {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "null", "None":
		return nil, nil
	}
	p.pos = start
	return nil, p.errorf("unknown identifier %q", word)
}

func (p *literalParser) ident() string {
	start := p.pos
	for !p.eof() && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

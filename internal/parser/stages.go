package parser

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	fencePattern         = regexp.MustCompile("```[A-Za-z0-9_-]*")
	errNoObject          = errors.New("no object delimiters found")
	errUnterminatedQuote = errors.New("unterminated single-quoted literal")
)

func stripFencesStage(text string) Outcome {
	return FallThrough(StripFences(text), nil)
}

func strictStage(text string) Outcome {
	obj, err := DecodeObject(text)
	if err != nil {
		return FallThrough(text, err)
	}
	return Decoded(obj)
}

func extractObjectStage(text string) Outcome {
	candidate, ok := ExtractObject(text)
	if !ok {
		return FallThrough(text, errNoObject)
	}
	obj, err := DecodeObject(candidate)
	if err != nil {
		return FallThrough(candidate, err)
	}
	return Decoded(obj)
}

func repairStage(text string) Outcome {
	repaired := Repair(text)
	obj, err := DecodeObject(repaired)
	if err != nil {
		return FallThrough(repaired, err)
	}
	return Decoded(obj)
}

// requoteStage hands its input, not its rewrite, to the next stage: the
// literal stage understands single quotes itself.
func requoteStage(text string) Outcome {
	requoted, err := Requote(text)
	if err != nil {
		return FallThrough(text, err)
	}
	obj, err := DecodeObject(StripTrailingCommas(requoted))
	if err != nil {
		return FallThrough(text, err)
	}
	return Decoded(obj)
}

func literalStage(text string) Outcome {
	obj, err := ParseLiteral(text)
	if err != nil {
		return FallThrough(text, err)
	}
	return Decoded(obj)
}

// StripFences removes markdown code fence markers and surrounding whitespace
func StripFences(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// ExtractObject returns the text from the first '{' to the last '}'
func ExtractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Repair normalizes full-width punctuation, drops comments and removes
// trailing commas. String literal contents are left untouched.
func Repair(text string) string {
	return StripTrailingCommas(stripComments(normalizeOutsideStrings(text)))
}

// scanner walks JSON-ish text and tracks whether it is inside a string
// literal. Both '"' and '\'' open a string; the other quote is content.
type scanner struct {
	src     []rune
	pos     int
	quote   rune
	escaped bool
}

func (s *scanner) inString() bool { return s.quote != 0 }

// advance consumes one rune and updates string state
func (s *scanner) advance() rune {
	r := s.src[s.pos]
	s.pos++
	switch {
	case s.escaped:
		s.escaped = false
	case s.inString() && r == '\\':
		s.escaped = true
	case s.inString():
		if r == s.quote {
			s.quote = 0
		}
	case r == '"' || r == '\'':
		s.quote = r
	}
	return r
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) peek(offset int) rune {
	if s.pos+offset >= len(s.src) {
		return 0
	}
	return s.src[s.pos+offset]
}

// normalizeOutsideStrings applies NFKC to structural text so full-width
// braces, colons, commas and quotes become their ASCII forms.
func normalizeOutsideStrings(text string) string {
	var b strings.Builder
	var segment strings.Builder
	flush := func() {
		b.WriteString(norm.NFKC.String(segment.String()))
		segment.Reset()
	}

	s := &scanner{src: []rune(normalizeQuotes(text))}
	for !s.done() {
		wasInString := s.inString()
		r := s.advance()
		if wasInString || s.inString() {
			flush()
			b.WriteRune(r)
			continue
		}
		segment.WriteRune(r)
	}
	flush()
	return b.String()
}

// normalizeQuotes turns typographic quotes that delimit strings into '"'.
// Typographic quotes inside ASCII-delimited strings are content and are kept.
func normalizeQuotes(text string) string {
	var b strings.Builder
	inASCII, inSingle, inTypographic, escaped := false, false, false, false
	for _, r := range text {
		switch {
		case escaped:
			escaped = false
		case (inASCII || inSingle || inTypographic) && r == '\\':
			escaped = true
		case inASCII:
			if r == '"' {
				inASCII = false
			}
		case inSingle:
			if r == '\'' {
				inSingle = false
			}
		case inTypographic:
			if r == '”' || r == '＂' {
				inTypographic = false
				r = '"'
			} else if r == '"' {
				b.WriteString(`\"`)
				continue
			}
		case r == '"':
			inASCII = true
		case r == '\'':
			inSingle = true
		case r == '“' || r == '”' || r == '＂':
			inTypographic = true
			r = '"'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripComments(text string) string {
	var b strings.Builder
	s := &scanner{src: []rune(text)}
	for !s.done() {
		if !s.inString() && s.peek(0) == '/' && s.peek(1) == '/' {
			for !s.done() && s.peek(0) != '\n' {
				s.pos++
			}
			continue
		}
		if !s.inString() && s.peek(0) == '/' && s.peek(1) == '*' {
			s.pos += 2
			for !s.done() && !(s.peek(0) == '*' && s.peek(1) == '/') {
				s.pos++
			}
			if !s.done() {
				s.pos += 2
			}
			continue
		}
		b.WriteRune(s.advance())
	}
	return b.String()
}

// StripTrailingCommas removes commas that directly precede '}' or ']'
func StripTrailingCommas(text string) string {
	runes := []rune(text)
	var b strings.Builder
	s := &scanner{src: runes}
	for !s.done() {
		wasInString := s.inString()
		idx := s.pos
		r := s.advance()
		if !wasInString && r == ',' && closesAfterWhitespace(runes, idx+1) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func closesAfterWhitespace(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}

// Requote rewrites single-quoted literals outside double-quoted strings as
// double-quoted JSON strings, escaping embedded double quotes.
func Requote(text string) (string, error) {
	var b strings.Builder
	s := &scanner{src: []rune(text)}
	for !s.done() {
		if s.inString() || s.peek(0) != '\'' {
			b.WriteRune(s.advance())
			continue
		}

		s.pos++ // opening quote
		b.WriteRune('"')
		closed := false
		for !s.done() {
			r := s.src[s.pos]
			s.pos++
			if r == '\\' && !s.done() {
				next := s.src[s.pos]
				s.pos++
				if next == '\'' {
					b.WriteRune('\'')
				} else {
					b.WriteRune('\\')
					b.WriteRune(next)
				}
				continue
			}
			if r == '\'' {
				closed = true
				break
			}
			if r == '"' {
				b.WriteString(`\"`)
				continue
			}
			b.WriteRune(r)
		}
		if !closed {
			return "", errUnterminatedQuote
		}
		b.WriteRune('"')
	}
	return b.String(), nil
}

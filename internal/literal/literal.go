// Package literal parses key/value record literals without evaluating them.
//
// The accepted grammar is the data subset shared by JSON and Python literals:
// mappings with string keys, lists, tuples, quoted strings, numbers and the
// constants True/False/None (and true/false/null). Identifiers, calls,
// operators and every other expression form are rejected.
package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zeebo/errs"
)

// Error is the error class for literal parsing.
var Error = errs.Class("literal")

// MaxDepth bounds container nesting.
const MaxDepth = 64

// SyntaxError describes where and why parsing stopped.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
}

// Parse parses text into string, int64, float64, bool, nil, []any or
// map[string]any values.
func Parse(text string) (any, error) {
	p := &parser{src: text}
	p.skipSpace()
	v, err := p.value(0)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, Error.Wrap(p.errorf("unexpected %q after value", p.excerpt()))
	}
	return v, nil
}

// ParseMap parses text whose top-level value must be a mapping.
func ParseMap(text string) (map[string]any, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, Error.New("top-level value is %T, not a mapping", v)
	}
	return m, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) excerpt() string {
	end := p.pos + 16
	if end > len(p.src) {
		end = len(p.src)
	}
	return p.src[p.pos:end]
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value(depth int) (any, error) {
	if depth > MaxDepth {
		return nil, p.errorf("nesting deeper than %d", MaxDepth)
	}
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	c := p.src[p.pos]
	switch {
	case c == '{':
		return p.mapping(depth)
	case c == '[':
		return p.sequence(depth, ']')
	case c == '(':
		return p.sequence(depth, ')')
	case c == '\'' || c == '"':
		return p.stringLiteral()
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		if p.prefixedString() {
			return p.stringLiteral()
		}
		return p.constant()
	default:
		return nil, p.errorf("unexpected %q", p.excerpt())
	}
}

func (p *parser) mapping(depth int) (any, error) {
	p.pos++ // {
	m := make(map[string]any)
	p.skipSpace()
	if !p.eof() && p.src[p.pos] == '}' {
		p.pos++
		return m, nil
	}
	for {
		p.skipSpace()
		keyPos := p.pos
		k, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, &SyntaxError{Offset: keyPos, Msg: fmt.Sprintf("mapping key must be a string, got %T", k)}
		}
		p.skipSpace()
		if p.eof() || p.src[p.pos] != ':' {
			return nil, p.errorf("expected ':' after mapping key")
		}
		p.pos++
		p.skipSpace()
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		m[key] = v
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated mapping")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			if !p.eof() && p.src[p.pos] == '}' {
				p.pos++
				return m, nil
			}
		case '}':
			p.pos++
			return m, nil
		default:
			return nil, p.errorf("expected ',' or '}' in mapping")
		}
	}
}

// sequence parses lists and tuples. A parenthesized single value without a
// trailing comma is the value itself.
func (p *parser) sequence(depth int, closer byte) (any, error) {
	p.pos++
	items := make([]any, 0)
	p.skipSpace()
	if !p.eof() && p.src[p.pos] == closer {
		p.pos++
		return items, nil
	}
	trailingComma := false
loop:
	for {
		p.skipSpace()
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated sequence")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			if !p.eof() && p.src[p.pos] == closer {
				p.pos++
				trailingComma = true
				break loop
			}
		case closer:
			p.pos++
			break loop
		default:
			return nil, p.errorf("expected ',' or %q in sequence", closer)
		}
	}
	if closer == ')' && len(items) == 1 && !trailingComma {
		return items[0], nil
	}
	return items, nil
}

// prefixedString reports whether the identifier at pos is a string prefix
// such as u'', b"" or r''.
func (p *parser) prefixedString() bool {
	i := p.pos
	for i < len(p.src) && i-p.pos < 2 && strings.IndexByte("uUbBrR", p.src[i]) >= 0 {
		i++
	}
	return i > p.pos && i < len(p.src) && (p.src[i] == '\'' || p.src[i] == '"')
}

// stringLiteral parses one or more adjacent string literals and concatenates them.
func (p *parser) stringLiteral() (any, error) {
	var b strings.Builder
	for {
		raw := false
		for !p.eof() && strings.IndexByte("uUbBrR", p.src[p.pos]) >= 0 {
			if p.src[p.pos] == 'r' || p.src[p.pos] == 'R' {
				raw = true
			}
			p.pos++
		}
		if err := p.quoted(&b, raw); err != nil {
			return nil, err
		}
		save := p.pos
		p.skipSpace()
		if p.eof() {
			break
		}
		c := p.src[p.pos]
		if c == '\'' || c == '"' || (isIdentStart(c) && p.prefixedString()) {
			continue
		}
		p.pos = save
		break
	}
	return b.String(), nil
}

func (p *parser) quoted(b *strings.Builder, raw bool) error {
	if p.eof() {
		return p.errorf("expected string")
	}
	q := p.src[p.pos]
	start := p.pos
	p.pos++
	for {
		if p.eof() {
			return &SyntaxError{Offset: start, Msg: "unterminated string"}
		}
		c := p.src[p.pos]
		switch {
		case c == q:
			p.pos++
			return nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return &SyntaxError{Offset: start, Msg: "unterminated string"}
			}
			if raw {
				b.WriteByte('\\')
				b.WriteByte(p.src[p.pos+1])
				p.pos += 2
				continue
			}
			if err := p.escape(b); err != nil {
				return err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\n':
	case '\\', '\'', '"':
		b.WriteByte(c)
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'v':
		b.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		n := int(c - '0')
		for i := 0; i < 2 && !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '7'; i++ {
			n = n*8 + int(p.src[p.pos]-'0')
			p.pos++
		}
		b.WriteRune(rune(n))
	case 'x', 'u', 'U':
		width := 2
		if c == 'u' {
			width = 4
		} else if c == 'U' {
			width = 8
		}
		if p.pos+width > len(p.src) {
			return p.errorf("truncated \\%c escape", c)
		}
		n, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
		if err != nil {
			return p.errorf("invalid \\%c escape", c)
		}
		if !utf8.ValidRune(rune(n)) && !(n >= 0xD800 && n <= 0xDFFF) {
			return p.errorf("escape \\%c out of range", c)
		}
		p.pos += width
		b.WriteRune(rune(n))
	default:
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *parser) number() (any, error) {
	start := p.pos
	if p.src[p.pos] == '-' || p.src[p.pos] == '+' {
		p.pos++
	}
	digits := p.digits()
	isFloat := false
	if !p.eof() && p.src[p.pos] == '.' {
		isFloat = true
		p.pos++
		digits += p.digits()
	}
	if digits == 0 {
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid number %q", p.src[start:p.pos])}
	}
	if !p.eof() && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		isFloat = true
		p.pos++
		if !p.eof() && (p.src[p.pos] == '-' || p.src[p.pos] == '+') {
			p.pos++
		}
		if p.digits() == 0 {
			return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid exponent in %q", p.src[start:p.pos])}
		}
	}
	if !p.eof() && (isIdentStart(p.src[p.pos]) || isDigit(p.src[p.pos])) {
		return nil, p.errorf("invalid character %q in number", p.src[p.pos])
	}
	text := p.src[start:p.pos]
	if !isFloat {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid number %q", text)}
	}
	return f, nil
}

func (p *parser) digits() int {
	n := 0
	for !p.eof() && isDigit(p.src[p.pos]) {
		p.pos++
		n++
	}
	return n
}

func (p *parser) constant() (any, error) {
	start := p.pos
	for !p.eof() && (isIdentStart(p.src[p.pos]) || isDigit(p.src[p.pos])) {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	default:
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("unsupported name %q", word)}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

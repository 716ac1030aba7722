package jsonstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultIndent is the indentation used by Reformat.
const DefaultIndent = "    "

var (
	ErrKeysMustBeStrings  = errors.New("jsonstream: expected a map key")
	ErrMaxDepth           = errors.New("jsonstream: generator nesting too deep")
	ErrGenerationComplete = errors.New("jsonstream: top-level value already generated")
	ErrInvalidNumber      = errors.New("jsonstream: invalid number literal")
	ErrInvalidString      = errors.New("jsonstream: string is not valid UTF-8")
	ErrUnbalanced         = errors.New("jsonstream: close without matching open")
)

type genState int

const (
	genStart genState = iota
	genMapStart
	genMapKey
	genMapValue
	genArrayStart
	genInArray
	genComplete
)

// Generator writes JSON text for the tokens it is fed. It implements
// Visitor, so a Parse into a Generator copies a document token for token.
type Generator struct {
	buf      bytes.Buffer
	indent   string
	beautify bool
	maxDepth int
	states   []genState
}

// GenOption configures a Generator.
type GenOption func(*Generator)

// Beautify puts every member and element on its own line, indented by
// indent per nesting level.
func Beautify(indent string) GenOption {
	return func(g *Generator) {
		g.beautify = true
		g.indent = indent
	}
}

// Compact disables beautification.
func Compact() GenOption {
	return func(g *Generator) { g.beautify = false }
}

// GenMaxDepth bounds container nesting.
func GenMaxDepth(n int) GenOption {
	return func(g *Generator) { g.maxDepth = n }
}

func NewGenerator(opts ...GenOption) *Generator {
	g := &Generator{maxDepth: DefaultMaxDepth, states: []genState{genStart}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bytes returns the text generated so far. It aliases the internal buffer.
func (g *Generator) Bytes() []byte { return g.buf.Bytes() }

// Complete reports whether one whole top-level value has been generated.
func (g *Generator) Complete() bool {
	return len(g.states) == 1 && g.states[0] == genComplete
}

// Reset discards output and state so the generator can be reused.
func (g *Generator) Reset() {
	g.buf.Reset()
	g.states = append(g.states[:0], genStart)
}

func (g *Generator) top() genState { return g.states[len(g.states)-1] }

func (g *Generator) newline() {
	if !g.beautify {
		return
	}
	g.buf.WriteByte('\n')
	g.buf.WriteString(strings.Repeat(g.indent, len(g.states)-1))
}

func (g *Generator) beforeValue() error {
	switch g.top() {
	case genComplete:
		return ErrGenerationComplete
	case genMapStart, genMapKey:
		return ErrKeysMustBeStrings
	case genInArray:
		g.buf.WriteByte(',')
		g.newline()
	case genArrayStart:
		g.newline()
	}
	return nil
}

func (g *Generator) afterValue() {
	i := len(g.states) - 1
	switch g.states[i] {
	case genStart:
		g.states[i] = genComplete
		if g.beautify {
			g.buf.WriteByte('\n')
		}
	case genMapValue:
		g.states[i] = genMapKey
	case genArrayStart:
		g.states[i] = genInArray
	}
}

func (g *Generator) scalar(text string) error {
	if err := g.beforeValue(); err != nil {
		return err
	}
	g.buf.WriteString(text)
	g.afterValue()
	return nil
}

func (g *Generator) Null() error { return g.scalar("null") }

func (g *Generator) Bool(v bool) error {
	if v {
		return g.scalar("true")
	}
	return g.scalar("false")
}

func (g *Generator) Number(literal string) error {
	if literal == "" || !(literal[0] == '-' || (literal[0] >= '0' && literal[0] <= '9')) || !json.Valid([]byte(literal)) {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, literal)
	}
	return g.scalar(literal)
}

func (g *Generator) String(s string) error {
	if !utf8.ValidString(s) {
		return ErrInvalidString
	}
	if err := g.beforeValue(); err != nil {
		return err
	}
	writeQuoted(&g.buf, s)
	g.afterValue()
	return nil
}

func (g *Generator) MapKey(key string) error {
	switch g.top() {
	case genMapKey:
		g.buf.WriteByte(',')
	case genMapStart:
	default:
		return ErrKeysMustBeStrings
	}
	if !utf8.ValidString(key) {
		return ErrInvalidString
	}
	g.newline()
	writeQuoted(&g.buf, key)
	g.buf.WriteByte(':')
	if g.beautify {
		g.buf.WriteByte(' ')
	}
	g.states[len(g.states)-1] = genMapValue
	return nil
}

func (g *Generator) open(delim byte, state genState) error {
	if err := g.beforeValue(); err != nil {
		return err
	}
	if len(g.states) > g.maxDepth {
		return ErrMaxDepth
	}
	g.buf.WriteByte(delim)
	g.states = append(g.states, state)
	return nil
}

func (g *Generator) close(delim byte, empty, filled genState) error {
	st := g.top()
	if len(g.states) == 1 || (st != empty && st != filled) {
		return ErrUnbalanced
	}
	g.states = g.states[:len(g.states)-1]
	if st == filled {
		g.newline()
	}
	g.buf.WriteByte(delim)
	g.afterValue()
	return nil
}

func (g *Generator) StartMap() error   { return g.open('{', genMapStart) }
func (g *Generator) EndMap() error     { return g.close('}', genMapStart, genMapKey) }
func (g *Generator) StartArray() error { return g.open('[', genArrayStart) }
func (g *Generator) EndArray() error   { return g.close(']', genArrayStart, genInArray) }

const hexDigits = "0123456789abcdef"

func writeQuoted(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var esc string
		switch c {
		case '"':
			esc = `\"`
		case '\\':
			esc = `\\`
		case '\n':
			esc = `\n`
		case '\r':
			esc = `\r`
		case '\t':
			esc = `\t`
		case '\b':
			esc = `\b`
		case '\f':
			esc = `\f`
		default:
			if c >= 0x20 {
				continue
			}
			esc = `\u00` + string(hexDigits[c>>4]) + string(hexDigits[c&0xf])
		}
		b.WriteString(s[start:i])
		b.WriteString(esc)
		start = i + 1
	}
	b.WriteString(s[start:])
	b.WriteByte('"')
}

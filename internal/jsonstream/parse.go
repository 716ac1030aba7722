package jsonstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// DefaultMaxDepth bounds container nesting accepted by Parse.
const DefaultMaxDepth = 128

var (
	ErrIncomplete   = errors.New("jsonstream: incomplete JSON value")
	ErrTrailingData = errors.New("jsonstream: trailing data after JSON value")
	ErrTooDeep      = errors.New("jsonstream: nesting too deep")
)

// SyntaxError reports malformed input.
type SyntaxError struct {
	Offset int64
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("jsonstream: syntax error at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// CallbackError carries an error returned by a Visitor method.
type CallbackError struct {
	Offset int64
	Err    error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("jsonstream: callback failed at offset %d: %v", e.Offset, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

type parseConfig struct {
	allowTrailing bool
	maxDepth      int
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// AllowTrailingData makes Parse stop right after the first complete value
// instead of rejecting whatever follows it.
func AllowTrailingData() ParseOption {
	return func(c *parseConfig) { c.allowTrailing = true }
}

// MaxDepth overrides DefaultMaxDepth.
func MaxDepth(n int) ParseOption {
	return func(c *parseConfig) { c.maxDepth = n }
}

type frame struct {
	isMap   bool
	wantKey bool
}

// Parse walks the first JSON value in buf and reports every token to v.
//
// On success consumed is the offset just past the value (AllowTrailingData)
// or len(buf). Truncated input returns ErrIncomplete with consumed set to
// len(buf); malformed input returns a *SyntaxError with consumed 0.
func Parse(buf []byte, v Visitor, opts ...ParseOption) (consumed int, err error) {
	cfg := parseConfig{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&cfg)
	}

	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()

	var stack []frame
	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].isMap {
			stack[n-1].wantKey = true
		}
	}

	for {
		prev := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return len(buf), ErrIncomplete
			}
			return 0, &SyntaxError{Offset: dec.InputOffset(), Err: err}
		}

		var cbErr error
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				if len(stack) >= cfg.maxDepth {
					return 0, ErrTooDeep
				}
				if t == '{' {
					cbErr = v.StartMap()
				} else {
					cbErr = v.StartArray()
				}
				stack = append(stack, frame{isMap: t == '{', wantKey: t == '{'})
			case '}', ']':
				stack = stack[:len(stack)-1]
				if t == '}' {
					cbErr = v.EndMap()
				} else {
					cbErr = v.EndArray()
				}
				valueDone()
			}
		case string:
			// The decoder substitutes U+FFFD for bad input, so check the raw literal.
			raw := buf[prev:dec.InputOffset()]
			start := bytes.IndexByte(raw, '"')
			if !validString(raw[start:]) {
				return 0, &SyntaxError{Offset: prev + int64(start), Err: ErrInvalidString}
			}
			if n := len(stack); n > 0 && stack[n-1].wantKey {
				stack[n-1].wantKey = false
				cbErr = v.MapKey(t)
			} else {
				cbErr = v.String(t)
				valueDone()
			}
		case json.Number:
			cbErr = v.Number(t.String())
			valueDone()
		case bool:
			cbErr = v.Bool(t)
			valueDone()
		case nil:
			cbErr = v.Null()
			valueDone()
		}
		if cbErr != nil {
			return 0, &CallbackError{Offset: dec.InputOffset(), Err: cbErr}
		}

		if len(stack) > 0 {
			continue
		}

		end := int(dec.InputOffset())
		if cfg.allowTrailing {
			return end, nil
		}
		if len(bytes.Trim(buf[end:], " \t\r\n")) > 0 {
			return end, ErrTrailingData
		}
		return len(buf), nil
	}
}

// validString reports whether the quoted literal raw is valid UTF-8 and
// every \u escape in the surrogate range is part of a proper pair.
func validString(raw []byte) bool {
	if !utf8.Valid(raw) {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		i++
		if i >= len(raw) || raw[i] != 'u' {
			continue
		}
		r, ok := hex4(raw[i+1:])
		if !ok {
			return false
		}
		i += 4
		switch {
		case r >= 0xDC00 && r <= 0xDFFF:
			return false
		case r >= 0xD800 && r <= 0xDBFF:
			if i+2 >= len(raw) || raw[i+1] != '\\' || raw[i+2] != 'u' {
				return false
			}
			lo, ok := hex4(raw[i+3:])
			if !ok || lo < 0xDC00 || lo > 0xDFFF {
				return false
			}
			i += 6
		}
	}
	return true
}

func hex4(b []byte) (uint64, bool) {
	if len(b) < 4 {
		return 0, false
	}
	n, err := strconv.ParseUint(string(b[:4]), 16, 32)
	return n, err == nil
}

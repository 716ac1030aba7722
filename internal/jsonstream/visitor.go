// Package jsonstream is a push-style JSON toolkit: a token parser that
// drives a Visitor, a Generator that re-emits tokens as JSON text, and the
// two consumers built on them, ProbeVersion and Reformat.
//
// No document tree is ever built. Callbacks see tokens in input order and
// may abort the parse by returning an error.
package jsonstream

// Visitor receives one call per token reported by Parse.
type Visitor interface {
	Null() error
	Bool(v bool) error
	// Number receives the literal text exactly as it appeared in the input.
	Number(literal string) error
	String(s string) error
	StartMap() error
	MapKey(key string) error
	EndMap() error
	StartArray() error
	EndArray() error
}

// NopVisitor ignores every token. Embed it to implement only the callbacks
// a consumer cares about.
type NopVisitor struct{}

func (NopVisitor) Null() error         { return nil }
func (NopVisitor) Bool(bool) error     { return nil }
func (NopVisitor) Number(string) error { return nil }
func (NopVisitor) String(string) error { return nil }
func (NopVisitor) StartMap() error     { return nil }
func (NopVisitor) MapKey(string) error { return nil }
func (NopVisitor) EndMap() error       { return nil }
func (NopVisitor) StartArray() error   { return nil }
func (NopVisitor) EndArray() error     { return nil }

package jsonstream

// Reformat re-emits the JSON document in buf through a beautifying
// Generator. Key order, element order and number literals are preserved.
// On any parse or generate failure the output is nil.
func Reformat(buf []byte, opts ...GenOption) ([]byte, error) {
	g := NewGenerator(append([]GenOption{Beautify(DefaultIndent)}, opts...)...)
	if _, err := Parse(buf, g); err != nil {
		return nil, err
	}
	if !g.Complete() {
		return nil, ErrIncomplete
	}
	return g.Bytes(), nil
}

package jsonstream

import (
	"errors"
	"strconv"
	"strings"
)

// UnknownVersion is returned when no version could be determined.
const UnknownVersion = -1

// ProbeResult is the outcome of Probe.
type ProbeResult struct {
	Version  int
	Consumed int
	// Complete is false when buf ended inside the first value; the caller
	// should probe again once more bytes have arrived.
	Complete bool
}

// versionProbe watches for the integer that follows a "version" key. Each
// probe owns one, so concurrent probes never share state.
type versionProbe struct {
	NopVisitor
	expectValue bool
	version     int
}

func (p *versionProbe) MapKey(key string) error {
	p.expectValue = key == "version"
	return nil
}

func (p *versionProbe) Number(literal string) error {
	if !p.expectValue || strings.ContainsAny(literal, ".eE") {
		return nil
	}
	v, err := strconv.Atoi(literal)
	if err != nil {
		return err
	}
	p.version = v
	return nil
}

// Probe inspects the first JSON value at the start of buf. Bytes after that
// value are left alone.
func Probe(buf []byte) ProbeResult {
	p := &versionProbe{version: UnknownVersion}
	consumed, err := Parse(buf, p, AllowTrailingData())
	switch {
	case err == nil:
		return ProbeResult{Version: p.version, Consumed: consumed, Complete: true}
	case errors.Is(err, ErrIncomplete):
		return ProbeResult{Version: p.version, Consumed: consumed}
	default:
		return ProbeResult{Version: UnknownVersion}
	}
}

// ProbeVersion returns the value of the last integer "version" key in the
// first JSON value of buf and how many bytes of buf that took. Malformed
// input yields (UnknownVersion, 0).
func ProbeVersion(buf []byte) (version int, consumed int) {
	r := Probe(buf)
	return r.Version, r.Consumed
}

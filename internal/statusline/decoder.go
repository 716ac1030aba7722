// Package statusline drives a status command (the child process feeding a
// status display) and splits its output into updates.
//
// The first bytes decide the protocol: a JSON header object carrying an
// integer "version" >= 1 selects the JSON protocol, anything else is
// treated as plain text with one status per line.
package statusline

import (
	"bytes"
	"encoding/json"

	"github.com/bryanchriswhite/wmipc/internal/jsonstream"
	"github.com/bryanchriswhite/wmipc/internal/logger"
	"golang.org/x/sys/unix"
)

// Protocol is the output format of a status command.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolText
	ProtocolJSON
)

func (p Protocol) String() string {
	switch p {
	case ProtocolText:
		return "text"
	case ProtocolJSON:
		return "json"
	default:
		return "unknown"
	}
}

// maxHeaderBytes caps how long the decoder waits for a header to complete
// before falling back to plain text.
const maxHeaderBytes = 64 << 10

// Header is the first object a JSON-protocol status command prints.
type Header struct {
	Version     int  `json:"version"`
	StopSignal  int  `json:"stop_signal"`
	ContSignal  int  `json:"cont_signal"`
	ClickEvents bool `json:"click_events"`
}

func defaultHeader() Header {
	return Header{
		Version:    jsonstream.UnknownVersion,
		StopSignal: int(unix.SIGSTOP),
		ContSignal: int(unix.SIGCONT),
	}
}

// Update is one complete status.
type Update struct {
	Protocol Protocol
	// Text is set for ProtocolText.
	Text string
	// Raw holds one JSON status array for ProtocolJSON. Its blocks are
	// left for the display to interpret.
	Raw json.RawMessage
}

// Decoder turns a byte stream into updates. Feed it bytes as they arrive.
type Decoder struct {
	buf      []byte
	protocol Protocol
	header   Header
	inArray  bool
}

func NewDecoder() *Decoder {
	return &Decoder{header: defaultHeader()}
}

func (d *Decoder) Protocol() Protocol { return d.protocol }

func (d *Decoder) Header() Header { return d.header }

// Feed consumes p and returns every update completed by it.
func (d *Decoder) Feed(p []byte) []Update {
	d.buf = append(d.buf, p...)

	if d.protocol == ProtocolUnknown && !d.detect() {
		return nil
	}

	var updates []Update
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		if u, ok := d.line(line); ok {
			updates = append(updates, u)
		}
	}
	return updates
}

// Flush returns an update for a trailing line without newline, used once
// the stream has ended.
func (d *Decoder) Flush() []Update {
	if len(d.buf) == 0 {
		return nil
	}
	if d.protocol == ProtocolUnknown {
		if len(bytes.TrimSpace(d.buf)) == 0 {
			return nil
		}
		d.protocol = ProtocolText
	}
	line := d.buf
	d.buf = nil
	if u, ok := d.line(line); ok {
		return []Update{u}
	}
	return nil
}

// detect settles the protocol once enough bytes are buffered. It reports
// false while still waiting.
func (d *Decoder) detect() bool {
	log := logger.WithComponent("statusline")

	r := jsonstream.Probe(d.buf)
	if !r.Complete && r.Consumed > 0 && len(d.buf) < maxHeaderBytes {
		return false
	}
	if !r.Complete || r.Version < 1 {
		d.protocol = ProtocolText
		log.Debug().Msg("Status command speaks plain text")
		return true
	}

	hdr := defaultHeader()
	if err := json.Unmarshal(d.buf[:r.Consumed], &hdr); err != nil {
		d.protocol = ProtocolText
		return true
	}
	hdr.Version = r.Version
	d.header = hdr
	d.protocol = ProtocolJSON
	d.buf = d.buf[r.Consumed:]

	log.Debug().
		Int("version", hdr.Version).
		Bool("click_events", hdr.ClickEvents).
		Msg("Status command speaks JSON")
	return true
}

func (d *Decoder) line(line []byte) (Update, bool) {
	if d.protocol == ProtocolText {
		return Update{Protocol: ProtocolText, Text: string(bytes.TrimRight(line, "\r"))}, true
	}

	trimmed := bytes.TrimSpace(line)
	if !d.inArray {
		if len(trimmed) == 0 {
			return Update{}, false
		}
		if trimmed[0] != '[' {
			logger.WithComponent("statusline").Warn().
				Str("line", string(trimmed)).
				Msg("Expected the opening bracket of the status stream")
			return Update{}, false
		}
		d.inArray = true
		trimmed = bytes.TrimSpace(trimmed[1:])
	}
	trimmed = bytes.TrimSpace(bytes.TrimPrefix(trimmed, []byte(",")))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("]")) {
		return Update{}, false
	}
	if !json.Valid(trimmed) {
		logger.WithComponent("statusline").Warn().
			Str("line", string(trimmed)).
			Msg("Dropping malformed status line")
		return Update{}, false
	}
	return Update{Protocol: ProtocolJSON, Raw: append(json.RawMessage(nil), trimmed...)}, true
}

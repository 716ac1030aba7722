// Package x11 reads the few pieces of X server state the IPC tools need:
// string properties on the root window (where the window manager publishes
// its socket path) and the currently focused window.
package x11

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/wmipc/internal/logger"
)

var ErrPropertyNotSet = errors.New("x11: property not set")

// WindowInfo describes a window as reported by its EWMH/ICCCM properties.
type WindowInfo struct {
	ID    uint32 `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Class string `json:"class" yaml:"class"`
	PID   int    `json:"pid" yaml:"pid"`
}

// Display is a connection to the X server's default screen.
type Display struct {
	conn *xgb.Conn
	root xproto.Window
}

// Open connects to $DISPLAY.
func Open() (*Display, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	return &Display{
		conn: conn,
		root: setup.DefaultScreen(conn).Root,
	}, nil
}

func (d *Display) Close() error {
	d.conn.Close()
	return nil
}

// RootProperty returns the named property of the root window as a string.
func (d *Display) RootProperty(name string) (string, error) {
	atom, err := d.getAtom(name)
	if err != nil {
		return "", fmt.Errorf("failed to intern %s: %w", name, err)
	}
	value, err := d.getProperty(d.root, atom)
	if err != nil {
		return "", err
	}

	logger.WithComponent("x11").Debug().
		Str("property", name).
		Int("bytes", len(value)).
		Msg("Read root window property")
	return value, nil
}

// FocusedWindow returns the window holding input focus.
func (d *Display) FocusedWindow() (WindowInfo, error) {
	focus, err := xproto.GetInputFocus(d.conn).Reply()
	if err != nil {
		return WindowInfo{}, err
	}
	return d.windowInfo(focus.Focus), nil
}

func (d *Display) windowInfo(win xproto.Window) WindowInfo {
	info := WindowInfo{ID: uint32(win)}

	for _, prop := range []string{"_NET_WM_NAME", "WM_NAME"} {
		atom, err := d.getAtom(prop)
		if err != nil {
			continue
		}
		if title, err := d.getProperty(win, atom); err == nil {
			info.Title = title
			break
		}
	}

	if atom, err := d.getAtom("WM_CLASS"); err == nil {
		if raw, err := d.getProperty(win, atom); err == nil {
			info.Class = parseWMClass(raw)
		}
	}

	if atom, err := d.getAtom("_NET_WM_PID"); err == nil {
		reply, err := xproto.GetProperty(d.conn, false, win, atom, xproto.AtomCardinal, 0, 1).Reply()
		if err == nil && len(reply.Value) >= 4 {
			info.PID = int(xgb.Get32(reply.Value))
		}
	}

	return info
}

// parseWMClass picks the class out of "instance\0class\0", falling back to
// the instance.
func parseWMClass(raw string) string {
	parts := strings.Split(raw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return parts[0]
}

func (d *Display) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(d.conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	if reply.Atom == xproto.AtomNone {
		return 0, ErrPropertyNotSet
	}
	return reply.Atom, nil
}

func (d *Display) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		d.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", ErrPropertyNotSet
	}
	return string(reply.Value), nil
}

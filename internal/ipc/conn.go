package ipc

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"github.com/bryanchriswhite/wmipc/internal/logger"
	"golang.org/x/sys/unix"
)

// MaxSocketPath is the longest socket path Dial will use, leaving room for
// the NUL terminator in sockaddr_un.
var MaxSocketPath = len(unix.RawSockaddrUnix{}.Path) - 1

// ConnectError reports a failed Dial.
type ConnectError struct {
	Path string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Path, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Conn is one client connection. It is not safe for concurrent use.
type Conn struct {
	rwc    io.ReadWriteCloser
	r      *bufio.Reader
	path   string
	limits Limits
}

// TruncateSocketPath cuts path down to MaxSocketPath bytes. Over-long paths
// are shortened rather than rejected.
func TruncateSocketPath(path string) string {
	if len(path) > MaxSocketPath {
		return path[:MaxSocketPath]
	}
	return path
}

// Dial connects to the unix stream socket at path.
func Dial(path string) (*Conn, error) {
	log := logger.WithComponent("ipc")

	if len(path) > MaxSocketPath {
		log.Warn().
			Int("length", len(path)).
			Int("max", MaxSocketPath).
			Msg("Socket path too long, truncating")
		path = TruncateSocketPath(path)
	}

	nc, err := net.Dial("unix", path)
	if err != nil {
		return nil, &ConnectError{Path: path, Err: err}
	}

	log.Debug().Str("path", path).Msg("Connected")
	c := NewConn(nc)
	c.path = path
	return c, nil
}

// NewConn wraps an already open stream.
func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{
		rwc:    rwc,
		r:      bufio.NewReader(rwc),
		limits: DefaultLimits(),
	}
}

// Path returns the socket path, empty for streams wrapped with NewConn.
func (c *Conn) Path() string { return c.path }

// SetLimits replaces the receive limits.
func (c *Conn) SetLimits(limits Limits) { c.limits = limits }

// Send frames payload as a message of type t and writes it completely.
func (c *Conn) Send(t uint32, payload []byte) error {
	return WriteMessage(c.rwc, t, payload)
}

// Receive reads the next message.
func (c *Conn) Receive() (Message, error) {
	return ReadMessage(c.r, c.limits)
}

func (c *Conn) Close() error {
	return c.rwc.Close()
}

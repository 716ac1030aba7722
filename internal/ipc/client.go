package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrSubscribeRejected = errors.New("ipc: subscription rejected")

// UnexpectedReplyError is returned when the reply type does not match the
// request that was sent.
type UnexpectedReplyError struct {
	Want uint32
	Got  uint32
}

func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("ipc: received reply of type %d but expected %d", e.Got, e.Want)
}

// Client runs request/reply exchanges over a Conn. Events that arrive while
// waiting for a reply are queued for NextEvent.
type Client struct {
	conn    *Conn
	pending []Message
}

func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// DialClient dials path and wraps the connection in a Client.
func DialClient(path string) (*Client, error) {
	conn, err := Dial(path)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

func (c *Client) Conn() *Conn { return c.conn }

func (c *Client) Close() error { return c.conn.Close() }

// Request sends one message and waits for its reply.
func (c *Client) Request(t uint32, payload []byte) (Message, error) {
	if err := c.conn.Send(t, payload); err != nil {
		return Message{}, err
	}
	for {
		msg, err := c.conn.Receive()
		if err != nil {
			return Message{}, fmt.Errorf("failed to read reply: %w", err)
		}
		if IsEvent(msg.Type) {
			c.pending = append(c.pending, msg)
			continue
		}
		if msg.Type != t {
			return msg, &UnexpectedReplyError{Want: t, Got: msg.Type}
		}
		return msg, nil
	}
}

// Subscribe asks for the named events on this connection.
func (c *Client) Subscribe(events ...string) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}
	reply, err := c.Request(Subscribe, payload)
	if err != nil {
		return err
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(reply.Payload, &result); err != nil {
		return fmt.Errorf("failed to decode subscribe reply: %w", err)
	}
	if !result.Success {
		return ErrSubscribeRejected
	}
	return nil
}

// NextEvent returns the next event, blocking until one arrives.
func (c *Client) NextEvent() (Message, error) {
	if len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending = c.pending[1:]
		return msg, nil
	}
	msg, err := c.conn.Receive()
	if err != nil {
		return Message{}, err
	}
	if !IsEvent(msg.Type) {
		return msg, &UnexpectedReplyError{Want: EventMask, Got: msg.Type}
	}
	return msg, nil
}

// CommandResult is one entry of a RunCommand reply.
type CommandResult struct {
	Success       bool   `json:"success"`
	ParseError    bool   `json:"parse_error,omitempty"`
	Error         string `json:"error,omitempty"`
	Input         string `json:"input,omitempty"`
	ErrorPosition string `json:"errorposition,omitempty"`
}

// ParseCommandReply decodes a RunCommand reply payload.
func ParseCommandReply(payload []byte) ([]CommandResult, error) {
	var results []CommandResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, fmt.Errorf("failed to decode command reply: %w", err)
	}
	return results, nil
}

// FailedCommands filters results down to the unsuccessful ones.
func FailedCommands(results []CommandResult) []CommandResult {
	var failed []CommandResult
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

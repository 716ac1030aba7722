// Package ipc speaks the window manager's local socket protocol.
//
// Every message is a fixed 14-byte header followed by a JSON payload:
//
//	"i3-ipc" | length uint32 | type uint32 | payload
//
// Integers are in host byte order. Peers are expected to run on the same
// machine, so the header carries no byte-order or version marker; changing
// that would break existing window managers and clients.
//
// The package never exits the process. Connection and write failures come
// back as *ConnectError and *WriteError; deciding to give up is left to the
// command that called it.
package ipc

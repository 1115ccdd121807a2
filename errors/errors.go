// Package errors defines the error vocabulary of the tracilink client.
//
// Every failure falls into one of four categories: Connection (TCP I/O or
// use of a closed transport), Protocol (structural violation of the wire
// format), Simulation (the server explicitly reported a command failure)
// and NotImplemented (the server does not support the command). Callers
// branch on the category with errors.As; the client never retries and
// never suppresses any of them.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrSimulationEnd is returned by Client.SimulationStep when the server
// answers a step-advance request with its close command: the simulation has
// reached its configured end time.
var ErrSimulationEnd = pkgerrors.New("simulation ended")

// ErrNotConnected is the cause of every operation attempted on a closed or
// never-connected transport.
var ErrNotConnected = pkgerrors.New("not connected")

// ConnectionError wraps a transport-level I/O failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Connection wraps err as a ConnectionError for the given operation.
func Connection(op string, err error) error {
	return &ConnectionError{Op: op, Err: err}
}

// NotConnected reports use of an absent transport during op.
func NotConnected(op string) error {
	return &ConnectionError{Op: op, Err: ErrNotConnected}
}

// ProtocolError reports a structural violation of the wire format: buffer
// underrun, malformed UTF-8, an unexpected echoed command id, a mismatched
// value-type tag, or an invalid frame length.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

// Protocolf builds a ProtocolError from a format string.
func Protocolf(format string, args ...interface{}) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// SimulationError carries the message text of a server-reported command
// failure (result type 0xFF).
type SimulationError struct {
	Command byte
	Msg     string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("command 0x%02x failed: %s", e.Command, e.Msg)
}

// Simulation builds a SimulationError for the given command.
func Simulation(command byte, msg string) error {
	return &SimulationError{Command: command, Msg: msg}
}

// NotImplementedError reports that the server answered result type 0x01:
// the command is well formed but unsupported. Distinguishable from
// SimulationError so callers can degrade gracefully.
type NotImplementedError struct {
	Command byte
	Msg     string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("command 0x%02x not implemented: %s", e.Command, e.Msg)
}

// NotImplemented builds a NotImplementedError for the given command.
func NotImplemented(command byte, msg string) error {
	return &NotImplementedError{Command: command, Msg: msg}
}

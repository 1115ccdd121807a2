// Package client implements the request/response engine of the simulator
// control protocol: command construction, response validation, the
// top-level simulation commands, and the dispatch of pushed subscription
// results into per-domain caches.
package client

import (
	"github.com/sirupsen/logrus"

	"github.com/kalifun/tracilink/errors"
	"github.com/kalifun/tracilink/pkg/protocol"
	"github.com/kalifun/tracilink/pkg/transport/tcp"
)

// Client is a connected control-protocol client. It owns the transport
// exclusively and issues exactly one command at a time, blocking until the
// matching response arrives. It is not safe for concurrent use.
type Client struct {
	conn   *tcp.Conn // nil after Close
	output *protocol.Buffer
	input  *protocol.Buffer
	logger *logrus.Logger

	// domains routes a variable-subscription response command id to the
	// domain whose cache receives the results. Fixed at construction.
	domains map[byte]*Domain

	Edge           *Domain
	GUI            *Domain
	InductionLoop  *InductionLoopDomain
	Junction       *Domain
	Lane           *LaneDomain
	LaneArea       *Domain
	MultiEntryExit *Domain
	Person         *PersonDomain
	POI            *Domain
	Polygon        *Domain
	Rerouter       *Domain
	Route          *Domain
	RouteProbe     *Domain
	Simulation     *SimulationDomain
	TrafficLight   *TrafficLightDomain
	Vehicle        *VehicleDomain
	VehicleType    *Domain
}

// Connect dials the simulator and returns a fully initialised client.
func Connect(cfg tcp.Config) (*Client, error) {
	conn, err := tcp.Dial(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, cfg.Logger), nil
}

// NewClient builds a client on an already connected transport.
func NewClient(conn *tcp.Conn, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Client{
		conn:   conn,
		output: protocol.NewBuffer(),
		input:  protocol.NewBuffer(),
		logger: logger,
	}
	c.initDomains()
	return c
}

// ---------------------------------------------------------------------------
// Top-level commands
// ---------------------------------------------------------------------------

// SetOrder sets this client's execution order among co-simulating clients.
func (c *Client) SetOrder(order int32) error {
	msg := protocol.NewBuffer()
	msg.WriteU8(1 + 1 + 4)
	msg.WriteU8(protocol.CmdSetOrder)
	msg.WriteI32(order)
	in, err := c.exchange(msg)
	if err != nil {
		return err
	}
	return c.checkResultState(in, protocol.CmdSetOrder, false)
}

// GetVersion returns the protocol API version and the server version string.
func (c *Client) GetVersion() (int32, string, error) {
	msg := protocol.NewBuffer()
	msg.WriteU8(1 + 1)
	msg.WriteU8(protocol.CmdGetVersion)
	in, err := c.exchange(msg)
	if err != nil {
		return 0, "", err
	}
	if err := c.checkResultState(in, protocol.CmdGetVersion, false); err != nil {
		return 0, "", err
	}
	if _, err := in.ReadU8(); err != nil { // message length
		return 0, "", err
	}
	if _, err := in.ReadU8(); err != nil { // command echo
		return 0, "", err
	}
	version, err := in.ReadI32()
	if err != nil {
		return 0, "", err
	}
	server, err := in.ReadString()
	if err != nil {
		return 0, "", err
	}
	return version, server, nil
}

// Load tells the server to load a new simulation with the given
// command-line arguments.
func (c *Client) Load(args []string) error {
	chars := 0
	for _, a := range args {
		chars += len(a)
	}
	msg := protocol.NewBuffer()
	msg.WriteU8(0)
	// marker(1) + cmd(1) + type tag(1) + list count(4) + per-string length
	// prefixes(4 each) + character bytes, plus the 4 extended-length bytes.
	total := 1 + 1 + 1 + 4 + chars + 4*len(args)
	msg.WriteI32(int32(total + 4))
	msg.WriteU8(protocol.CmdLoad)
	msg.WriteU8(protocol.TypeStringList)
	msg.WriteStringList(args)
	in, err := c.exchange(msg)
	if err != nil {
		return err
	}
	return c.checkResultState(in, protocol.CmdLoad, false)
}

// SimulationStep advances the simulation by one step, or up to the given
// time when delta is positive. Every domain's subscription caches are
// cleared and repopulated from this step's response only.
//
// Returns errors.ErrSimulationEnd when the server answers with its close
// command: the simulation has reached its configured end time.
func (c *Client) SimulationStep(delta float64) error {
	msg := protocol.NewBuffer()
	msg.WriteU8(1 + 1 + 8)
	msg.WriteU8(protocol.CmdSimStep)
	msg.WriteF64(delta)
	in, err := c.exchange(msg)
	if err != nil {
		return err
	}
	if err := c.checkResultState(in, protocol.CmdSimStep, false); err != nil {
		return err
	}
	return c.processSubscriptions(in)
}

// Close sends the close command, waits for the acknowledgement and shuts
// down the transport. The client cannot be reused afterwards.
func (c *Client) Close() error {
	msg := protocol.NewBuffer()
	msg.WriteU8(1 + 1)
	msg.WriteU8(protocol.CmdClose)
	in, err := c.exchange(msg)
	if err != nil {
		c.closeConn()
		return err
	}
	err = c.checkResultState(in, protocol.CmdClose, false)
	c.closeConn()
	return err
}

func (c *Client) closeConn() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.WithError(err).Error("Failed to close connection")
		}
		c.conn = nil
	}
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

// SubscribeObjectVariable asks the server to push the listed variables of
// one object back with every step-advance response between begin and end.
func (c *Client) SubscribeObjectVariable(domCmd byte, objID string, begin, end float64, vars []byte) error {
	if c.conn == nil {
		return errors.NotConnected("subscribe")
	}
	msg := protocol.NewBuffer()
	msg.WriteU8(0)
	msg.WriteI32(int32(5 + 1 + 8 + 8 + 4 + len(objID) + 1 + len(vars)))
	msg.WriteU8(domCmd)
	msg.WriteF64(begin)
	msg.WriteF64(end)
	msg.WriteString(objID)
	msg.WriteU8(byte(len(vars)))
	for _, v := range vars {
		msg.WriteU8(v)
	}
	return c.conn.SendExact(msg)
}

// SubscribeObjectContext asks the server to push the listed variables of
// every object of the given domain found within range of the anchor object.
func (c *Client) SubscribeObjectContext(domCmd byte, objID string, begin, end float64, domain byte, rng float64, vars []byte) error {
	if c.conn == nil {
		return errors.NotConnected("subscribe")
	}
	msg := protocol.NewBuffer()
	msg.WriteU8(0)
	msg.WriteI32(int32(5 + 1 + 8 + 8 + 4 + len(objID) + 1 + 8 + 1 + len(vars)))
	msg.WriteU8(domCmd)
	msg.WriteF64(begin)
	msg.WriteF64(end)
	msg.WriteString(objID)
	msg.WriteU8(domain)
	msg.WriteF64(rng)
	msg.WriteU8(byte(len(vars)))
	for _, v := range vars {
		msg.WriteU8(v)
	}
	return c.conn.SendExact(msg)
}

// AddSubscriptionFilter refines the most recently issued context
// subscription with the given filter. The extra payload layout depends on
// the filter type.
func (c *Client) AddSubscriptionFilter(filterType byte, extra *protocol.Buffer) error {
	c.createFilterCommand(protocol.CmdAddSubscriptionFilter, filterType, extra)
	_, err := c.processSet(protocol.CmdAddSubscriptionFilter)
	return err
}

// ---------------------------------------------------------------------------
// Command construction
// ---------------------------------------------------------------------------

// createCommand resets the output buffer and writes one command frame:
// length (short or extended form), command id, variable id, object id and
// the optional extra payload.
func (c *Client) createCommand(cmdID, varID byte, objID string, extra *protocol.Buffer) {
	extraLen := 0
	if extra != nil {
		extraLen = extra.Len()
	}
	c.output.Reset()
	length := 1 + 1 + 1 + 4 + len(objID) + extraLen
	c.writeCommandLength(length)
	c.output.WriteU8(cmdID)
	c.output.WriteU8(varID)
	c.output.WriteString(objID)
	if extra != nil {
		c.output.WriteBytes(extra.Bytes())
	}
}

// createFilterCommand writes a command frame without an object-id field,
// used for subscription refinement filters.
func (c *Client) createFilterCommand(cmdID, filterType byte, extra *protocol.Buffer) {
	extraLen := 0
	if extra != nil {
		extraLen = extra.Len()
	}
	c.output.Reset()
	length := 1 + 1 + 1 + extraLen
	c.writeCommandLength(length)
	c.output.WriteU8(cmdID)
	c.output.WriteU8(filterType)
	if extra != nil {
		c.output.WriteBytes(extra.Bytes())
	}
}

// The short length form covers commands up to 255 bytes; longer commands
// use a zero marker byte followed by a 4-byte extended length that also
// counts those 4 bytes.
func (c *Client) writeCommandLength(length int) {
	if length <= 255 {
		c.output.WriteU8(byte(length))
	} else {
		c.output.WriteU8(0)
		c.output.WriteI32(int32(length + 4))
	}
}

// ---------------------------------------------------------------------------
// Exchange and validation
// ---------------------------------------------------------------------------

// exchange sends one message and receives the matching response.
func (c *Client) exchange(msg *protocol.Buffer) (*protocol.Buffer, error) {
	if c.conn == nil {
		return nil, errors.NotConnected("exchange")
	}
	if err := c.conn.SendExact(msg); err != nil {
		return nil, err
	}
	return c.conn.ReceiveExact()
}

// processGet sends the command built in the output buffer, validates the
// result status and the get-response header, and leaves the input cursor
// at the start of the typed payload. The boolean reports whether a
// transport was present at all: a detached client is a no-op, not an error.
func (c *Client) processGet(command byte, expectedType byte) (bool, error) {
	if c.conn == nil {
		return false, nil
	}
	if err := c.conn.SendExact(c.output); err != nil {
		return false, err
	}
	in, err := c.conn.ReceiveExact()
	if err != nil {
		return false, err
	}
	c.input = in
	if err := c.checkResultState(c.input, command, false); err != nil {
		return false, err
	}
	if _, err := c.checkGetResponse(c.input, command, int(expectedType), false); err != nil {
		return false, err
	}
	return true, nil
}

// processSet sends the command built in the output buffer and validates
// only the result status: SET commands carry no typed return value.
func (c *Client) processSet(command byte) (bool, error) {
	if c.conn == nil {
		return false, nil
	}
	if err := c.conn.SendExact(c.output); err != nil {
		return false, err
	}
	in, err := c.conn.ReceiveExact()
	if err != nil {
		return false, err
	}
	c.input = in
	if err := c.checkResultState(c.input, command, false); err != nil {
		return false, err
	}
	return true, nil
}

// checkResultState validates one result-status response: length byte,
// echoed command id, result type and message string. The length byte is
// only bounds-checked; the transport already delivered an exact frame.
func (c *Client) checkResultState(in *protocol.Buffer, command byte, ignoreCommandID bool) error {
	if _, err := in.ReadU8(); err != nil {
		return err
	}
	cmdID, err := in.ReadU8()
	if err != nil {
		return err
	}
	if !ignoreCommandID && cmdID != command {
		if command == protocol.CmdSimStep && cmdID == protocol.CmdClose {
			return errors.ErrSimulationEnd
		}
		return errors.Protocolf("received status for command 0x%02x but expected 0x%02x", cmdID, command)
	}
	resultType, err := in.ReadU8()
	if err != nil {
		return err
	}
	msg, err := in.ReadString()
	if err != nil {
		return err
	}
	switch resultType {
	case protocol.RTypeOK:
		return nil
	case protocol.RTypeNotImplemented:
		return errors.NotImplemented(command, msg)
	case protocol.RTypeErr:
		return errors.Simulation(command, msg)
	default:
		return errors.Protocolf("unknown result type 0x%02x for command 0x%02x: %s", resultType, command, msg)
	}
}

// checkGetResponse validates a get-response header and returns the actual
// response command id. When expectedType is non-negative the variable-id
// and object-id echoes are consumed and the value-type tag must match
// exactly; a mismatch is never coerced.
func (c *Client) checkGetResponse(in *protocol.Buffer, command byte, expectedType int, ignoreCommandID bool) (byte, error) {
	length, err := in.ReadU8()
	if err != nil {
		return 0, err
	}
	if length == 0 {
		if _, err := in.ReadI32(); err != nil {
			return 0, err
		}
	}
	cmdID, err := in.ReadU8()
	if err != nil {
		return 0, err
	}
	if !ignoreCommandID && cmdID != command+protocol.GetResponseOffset {
		return 0, errors.Protocolf("received response for command 0x%02x but expected 0x%02x",
			cmdID, command+protocol.GetResponseOffset)
	}
	if expectedType >= 0 {
		if _, err := in.ReadU8(); err != nil { // variable id echo
			return 0, err
		}
		if _, err := in.ReadString(); err != nil { // object id echo
			return 0, err
		}
		valueType, err := in.ReadU8()
		if err != nil {
			return 0, err
		}
		if valueType != byte(expectedType) {
			return 0, errors.Protocolf("expected value type 0x%02x but got 0x%02x", expectedType, valueType)
		}
	}
	return cmdID, nil
}

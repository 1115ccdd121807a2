// Package tcp provides the length-framed TCP transport of the simulator
// control protocol. Every message on the wire is
//
//	[4-byte big-endian total length (including these 4 bytes)] [payload...]
//
// SendExact writes one such frame; ReceiveExact blocks until a complete
// frame has arrived and returns its payload.
package tcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kalifun/tracilink/errors"
	"github.com/kalifun/tracilink/pkg/protocol"
)

// headerLen is the size of the total-length prefix.
const headerLen = 4

// Config describes how to reach the simulator's control port.
type Config struct {
	Host           string        `json:"host" toml:"host"`
	Port           int           `json:"port" toml:"port"`
	ConnectTimeout time.Duration `json:"connectTimeout" toml:"connect_timeout"`
	// IOTimeout bounds each send and each receive. Zero means block
	// until the frame completes.
	IOTimeout time.Duration `json:"ioTimeout" toml:"io_timeout"`
	Logger    *logrus.Logger
}

func (c *Config) validate() error {
	if c.Host == "" {
		return errors.Protocolf("transport config: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Protocolf("transport config: port %d out of range", c.Port)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	return nil
}

// Conn is one connected control channel. It is not safe for concurrent use;
// the protocol is strictly alternating request/response and the connection
// is owned by exactly one client.
type Conn struct {
	conn    net.Conn
	timeout time.Duration
	logger  *logrus.Logger
	closed  bool
}

// Dial connects to the simulator and disables send coalescing: every
// exchange is one small request awaiting one small reply, so batching
// writes only adds latency.
func Dial(cfg Config) (*Conn, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	cfg.Logger.WithFields(logrus.Fields{
		"addr":    addr,
		"timeout": cfg.ConnectTimeout,
	}).Info("Connecting to simulator")

	conn, err := net.DialTimeout("tcp", addr, cfg.ConnectTimeout)
	if err != nil {
		return nil, errors.Connection("connect", pkgerrors.Wrapf(err, "dial %s", addr))
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, errors.Connection("connect", err)
		}
	}

	cfg.Logger.WithField("addr", addr).Info("Connected to simulator")
	return &Conn{conn: conn, timeout: cfg.IOTimeout, logger: cfg.Logger}, nil
}

// NewConn wraps an already established connection. Used by tests and by
// callers that manage their own dialing.
func NewConn(conn net.Conn, logger *logrus.Logger) *Conn {
	if logger == nil {
		logger = logrus.New()
	}
	return &Conn{conn: conn, logger: logger}
}

// SendExact frames the buffer's content and writes it to the connection.
func (c *Conn) SendExact(buf *protocol.Buffer) error {
	if c.closed {
		return errors.NotConnected("send")
	}

	payload := buf.Bytes()
	frame := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(headerLen+len(payload)))
	copy(frame[headerLen:], payload)

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return errors.Connection("send", err)
		}
	}
	if _, err := c.conn.Write(frame); err != nil {
		return errors.Connection("send", err)
	}

	c.logger.WithField("bytes", len(frame)).Debug("Sent frame")
	return nil
}

// ReceiveExact reads exactly one length-framed message and returns its
// payload as a fresh buffer with the read cursor at position 0. It blocks
// until the full frame has arrived (bounded by IOTimeout when set).
func (c *Conn) ReceiveExact() (*protocol.Buffer, error) {
	if c.closed {
		return nil, errors.NotConnected("receive")
	}

	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, errors.Connection("receive", err)
		}
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, errors.Connection("receive", err)
	}
	total := binary.BigEndian.Uint32(header)
	if total < headerLen {
		return nil, errors.Protocolf("frame length %d is smaller than header size %d", total, headerLen)
	}

	payload := make([]byte, total-headerLen)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, errors.Connection("receive", err)
	}

	c.logger.WithField("bytes", total).Debug("Received frame")
	return protocol.FromBytes(payload), nil
}

// Close shuts down both directions of the connection. Any later operation
// fails with a not-connected error rather than silently doing nothing.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.conn.Close(); err != nil {
		return errors.Connection("close", err)
	}
	c.logger.Debug("Connection closed")
	return nil
}

package client

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/kalifun/tracilink/errors"
	"github.com/kalifun/tracilink/pkg/protocol"
	"github.com/kalifun/tracilink/pkg/transport/tcp"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// detachedClient builds a client without a transport: commands are still
// constructed, gets and sets become no-ops.
func detachedClient() *Client {
	return NewClient(nil, quietLogger())
}

// pipeClient builds a client talking to an in-memory scripted server.
func pipeClient(t *testing.T) (*Client, net.Conn) {
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() { serverSide.Close() })
	c := NewClient(tcp.NewConn(clientSide, quietLogger()), quietLogger())
	return c, serverSide
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Errorf("read frame header: %v", err)
		return nil
	}
	payload := make([]byte, binary.BigEndian.Uint32(header)-4)
	if _, err := io.ReadFull(conn, payload); err != nil {
		t.Errorf("read frame payload: %v", err)
		return nil
	}
	return payload
}

func writeFrame(t *testing.T, conn net.Conn, payload *protocol.Buffer) {
	buf := payload.Bytes()
	frame := make([]byte, 4+len(buf))
	binary.BigEndian.PutUint32(frame, uint32(4+len(buf)))
	copy(frame[4:], buf)
	if _, err := conn.Write(frame); err != nil {
		t.Errorf("write frame: %v", err)
	}
}

// statusPayload builds one result-status block.
func statusPayload(cmd, resultType byte, msg string) *protocol.Buffer {
	b := protocol.NewBuffer()
	b.WriteU8(byte(1 + 1 + 1 + 4 + len(msg)))
	b.WriteU8(cmd)
	b.WriteU8(resultType)
	b.WriteString(msg)
	return b
}

// TestCreateCommandShortForm tests the single-byte length form and the
// field order of a command frame.
func TestCreateCommandShortForm(t *testing.T) {
	c := detachedClient()
	c.createCommand(0xa4, 0x40, "ab", nil)

	want := []byte{
		9,          // length, including itself
		0xa4, 0x40, // command, variable
		0, 0, 0, 2, 'a', 'b', // object id
	}
	assert.Equal(t, want, c.output.Bytes())
}

// TestCreateCommandLengthFormSelection tests the switch from the short to
// the extended length form exactly past 255 bytes.
func TestCreateCommandLengthFormSelection(t *testing.T) {
	c := detachedClient()

	// 7 framing bytes + 248 id bytes = 255: still the short form.
	id := make([]byte, 248)
	for i := range id {
		id[i] = 'x'
	}
	c.createCommand(0xa4, 0x40, string(id), nil)
	assert.Equal(t, byte(255), c.output.Bytes()[0])
	assert.Equal(t, 255, c.output.Len())

	// One more byte tips it into the extended form: a zero marker plus a
	// 4-byte length that also counts those 4 bytes.
	c.createCommand(0xa4, 0x40, string(id)+"x", nil)
	raw := c.output.Bytes()
	assert.Equal(t, byte(0), raw[0])
	assert.Equal(t, uint32(260), binary.BigEndian.Uint32(raw[1:5]))
	assert.Equal(t, 260, c.output.Len())
}

// TestCreateCommandWithExtra tests that an extra payload is appended after
// the object id and counted in the length.
func TestCreateCommandWithExtra(t *testing.T) {
	c := detachedClient()
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeDouble)
	extra.WriteF64(0)

	c.createCommand(0xa4, 0x68, "v1", extra)
	raw := c.output.Bytes()
	assert.Equal(t, byte(9+9), raw[0])
	assert.Equal(t, byte(protocol.TypeDouble), raw[9])
}

// TestCreateFilterCommand tests the object-id-free filter frame.
func TestCreateFilterCommand(t *testing.T) {
	c := detachedClient()
	c.createFilterCommand(protocol.CmdAddSubscriptionFilter, protocol.FilterTypeNoOpposite, nil)
	assert.Equal(t, []byte{3, 0x7e, 0x02}, c.output.Bytes())
}

// TestCheckResultState tests every acceptance and rejection path of the
// result-status block.
func TestCheckResultState(t *testing.T) {
	tests := []struct {
		name       string
		echoed     byte
		resultType byte
		expected   byte
		wantErr    bool
		errCheck   func(t *testing.T, err error)
	}{
		{
			name:       "ok",
			echoed:     0xa4,
			resultType: protocol.RTypeOK,
			expected:   0xa4,
		},
		{
			name:       "server reported failure",
			echoed:     0xa4,
			resultType: protocol.RTypeErr,
			expected:   0xa4,
			wantErr:    true,
			errCheck: func(t *testing.T, err error) {
				var simErr *errors.SimulationError
				assert.ErrorAs(t, err, &simErr)
				assert.Equal(t, "no such vehicle", simErr.Msg)
			},
		},
		{
			name:       "not implemented",
			echoed:     0xa4,
			resultType: protocol.RTypeNotImplemented,
			expected:   0xa4,
			wantErr:    true,
			errCheck: func(t *testing.T, err error) {
				var niErr *errors.NotImplementedError
				assert.ErrorAs(t, err, &niErr)
			},
		},
		{
			name:       "unknown result type",
			echoed:     0xa4,
			resultType: 0x42,
			expected:   0xa4,
			wantErr:    true,
			errCheck: func(t *testing.T, err error) {
				var protoErr *errors.ProtocolError
				assert.ErrorAs(t, err, &protoErr)
			},
		},
		{
			name:       "mismatched command echo",
			echoed:     0x05,
			resultType: protocol.RTypeOK,
			expected:   0x02,
			wantErr:    true,
			errCheck: func(t *testing.T, err error) {
				var protoErr *errors.ProtocolError
				assert.ErrorAs(t, err, &protoErr)
			},
		},
		{
			name:       "close echo during step means simulation end",
			echoed:     protocol.CmdClose,
			resultType: protocol.RTypeOK,
			expected:   protocol.CmdSimStep,
			wantErr:    true,
			errCheck: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, errors.ErrSimulationEnd)
			},
		},
	}

	c := detachedClient()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := statusPayload(tt.echoed, tt.resultType, "no such vehicle")
			err := c.checkResultState(in, tt.expected, false)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errCheck != nil {
					tt.errCheck(t, err)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestCheckGetResponse tests response-header validation including the
// extended length form and the exact-type requirement.
func TestCheckGetResponse(t *testing.T) {
	c := detachedClient()

	good := protocol.NewBuffer()
	good.WriteU8(20)
	good.WriteU8(0xb4)
	good.WriteU8(0x40)
	good.WriteString("v1")
	good.WriteU8(protocol.TypeDouble)
	cmdID, err := c.checkGetResponse(good, 0xa4, int(protocol.TypeDouble), false)
	assert.NoError(t, err)
	assert.Equal(t, byte(0xb4), cmdID)

	extended := protocol.NewBuffer()
	extended.WriteU8(0)
	extended.WriteI32(300)
	extended.WriteU8(0xb4)
	extended.WriteU8(0x40)
	extended.WriteString("v1")
	extended.WriteU8(protocol.TypeDouble)
	_, err = c.checkGetResponse(extended, 0xa4, int(protocol.TypeDouble), false)
	assert.NoError(t, err)

	wrongID := protocol.NewBuffer()
	wrongID.WriteU8(20)
	wrongID.WriteU8(0xb3)
	_, err = c.checkGetResponse(wrongID, 0xa4, -1, false)
	assert.Error(t, err)

	wrongType := protocol.NewBuffer()
	wrongType.WriteU8(20)
	wrongType.WriteU8(0xb4)
	wrongType.WriteU8(0x40)
	wrongType.WriteString("v1")
	wrongType.WriteU8(protocol.TypeInteger)
	_, err = c.checkGetResponse(wrongType, 0xa4, int(protocol.TypeDouble), false)
	assert.Error(t, err)
}

// TestDetachedClientIsNoOp tests that a client without a transport answers
// gets with zero values and no error.
func TestDetachedClientIsNoOp(t *testing.T) {
	c := detachedClient()

	speed, err := c.Vehicle.GetSpeed("v1")
	assert.NoError(t, err)
	assert.Zero(t, speed)

	ids, err := c.Edge.GetIDList()
	assert.NoError(t, err)
	assert.Nil(t, ids)

	assert.NoError(t, c.Vehicle.SetSpeed("v1", 10))
}

// TestGetVersion tests the version exchange end to end over a pipe.
func TestGetVersion(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		assert.Equal(t, []byte{2, protocol.CmdGetVersion}, req)

		resp := statusPayload(protocol.CmdGetVersion, protocol.RTypeOK, "")
		resp.WriteU8(byte(1 + 1 + 4 + 4 + len("Test Server")))
		resp.WriteU8(protocol.CmdGetVersion)
		resp.WriteI32(21)
		resp.WriteString("Test Server")
		writeFrame(t, server, resp)
	}()

	version, serverName, err := c.GetVersion()
	assert.NoError(t, err)
	assert.Equal(t, int32(21), version)
	assert.Equal(t, "Test Server", serverName)
}

// TestSetOrder tests the order command's wire form and acknowledgement.
func TestSetOrder(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		assert.Equal(t, []byte{6, protocol.CmdSetOrder, 0, 0, 0, 7}, req)
		writeFrame(t, server, statusPayload(protocol.CmdSetOrder, protocol.RTypeOK, ""))
	}()

	assert.NoError(t, c.SetOrder(7))
}

// TestLoad tests that load arguments travel as an extended-length
// string-list command.
func TestLoad(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		assert.Equal(t, byte(0), req[0])
		assert.Equal(t, byte(protocol.CmdLoad), req[5])
		assert.Equal(t, byte(protocol.TypeStringList), req[6])
		writeFrame(t, server, statusPayload(protocol.CmdLoad, protocol.RTypeOK, ""))
	}()

	assert.NoError(t, c.Load([]string{"-c", "scenario.cfg"}))
}

// TestClose tests the close handshake and that the client rejects reuse.
func TestClose(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		assert.Equal(t, []byte{2, protocol.CmdClose}, req)
		writeFrame(t, server, statusPayload(protocol.CmdClose, protocol.RTypeOK, ""))
	}()

	assert.NoError(t, c.Close())
	assert.Nil(t, c.conn)
}

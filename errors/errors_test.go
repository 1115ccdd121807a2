package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCategoryMatching tests that every category is reachable through
// errors.As and carries its context.
func TestCategoryMatching(t *testing.T) {
	var connErr *ConnectionError
	err := Connection("send", stderrors.New("broken pipe"))
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, "send", connErr.Op)
	assert.Contains(t, err.Error(), "broken pipe")

	var protoErr *ProtocolError
	err = Protocolf("unexpected tag 0x%02x", 0x42)
	assert.ErrorAs(t, err, &protoErr)
	assert.Contains(t, err.Error(), "0x42")

	var simErr *SimulationError
	err = Simulation(0xa4, "no such vehicle")
	assert.ErrorAs(t, err, &simErr)
	assert.Equal(t, byte(0xa4), simErr.Command)

	var niErr *NotImplementedError
	err = NotImplemented(0x7e, "filter unsupported")
	assert.ErrorAs(t, err, &niErr)
}

// TestNotConnectedUnwraps tests that transport-absence errors unwrap to
// the shared sentinel.
func TestNotConnectedUnwraps(t *testing.T) {
	err := NotConnected("receive")
	assert.ErrorIs(t, err, ErrNotConnected)

	var connErr *ConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, "receive", connErr.Op)
}

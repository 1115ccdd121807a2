package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kalifun/tracilink/pkg/protocol"
)

// getResponse builds a complete scripted answer to one retrieval command.
func getResponse(cmd, varID byte, objID string, valueType byte, fill func(*protocol.Buffer)) *protocol.Buffer {
	resp := statusPayload(cmd, protocol.RTypeOK, "")
	resp.WriteU8(40) // response length byte, only bounds-checked
	resp.WriteU8(cmd + protocol.GetResponseOffset)
	resp.WriteU8(varID)
	resp.WriteString(objID)
	resp.WriteU8(valueType)
	fill(resp)
	return resp
}

// TestCommandByteDerivation tests that all seven command bytes of every
// domain follow the fixed 0x10 spacing from its base.
func TestCommandByteDerivation(t *testing.T) {
	c := detachedClient()

	tests := []struct {
		name   string
		domain *Domain
		get    byte
		set    byte
		subVar byte
	}{
		{"induction loop", c.InductionLoop.Domain, 0xa0, 0xc0, 0xd0},
		{"traffic light", c.TrafficLight.Domain, 0xa2, 0xc2, 0xd2},
		{"lane", c.Lane.Domain, 0xa3, 0xc3, 0xd3},
		{"vehicle", c.Vehicle.Domain, 0xa4, 0xc4, 0xd4},
		{"simulation", c.Simulation.Domain, 0xab, 0xcb, 0xdb},
		{"person", c.Person.Domain, 0xae, 0xce, 0xde},
		{"rerouter", c.Rerouter, 0x28, 0x48, 0x58},
		{"route probe", c.RouteProbe, 0x26, 0x46, 0x56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.get, tt.domain.cmd.Get())
			assert.Equal(t, tt.set, tt.domain.cmd.Set())
			assert.Equal(t, tt.subVar, tt.domain.cmd.SubscribeVariable())
			assert.Equal(t, tt.get+protocol.GetResponseOffset, tt.domain.cmd.ResponseGet())
			assert.Equal(t, tt.subVar+protocol.GetResponseOffset, tt.domain.cmd.ResponseVariable())
		})
	}
}

// TestResponseRouting tests that every domain is reachable from its
// variable-subscription response id and that the table covers all 17.
func TestResponseRouting(t *testing.T) {
	c := detachedClient()

	assert.Len(t, c.domains, 17)
	assert.Same(t, c.Vehicle.Domain, c.domains[0xe4])
	assert.Same(t, c.InductionLoop.Domain, c.domains[0xe0])
	assert.Same(t, c.Person.Domain, c.domains[0xee])
	assert.Same(t, c.Rerouter, c.domains[0x68])
	assert.Same(t, c.RouteProbe, c.domains[0x66])
}

// TestGetDouble tests one scalar retrieval end to end over a pipe,
// including the request's wire form.
func TestGetDouble(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		assert.Equal(t, []byte{9, 0xa4, protocol.VarSpeed, 0, 0, 0, 2, 'v', '1'}, req)
		writeFrame(t, server, getResponse(0xa4, protocol.VarSpeed, "v1", protocol.TypeDouble,
			func(b *protocol.Buffer) { b.WriteF64(13.9) }))
	}()

	speed, err := c.Vehicle.GetSpeed("v1")
	assert.NoError(t, err)
	assert.Equal(t, 13.9, speed)
}

// TestSetDouble tests one scalar change's wire form and acknowledgement.
func TestSetDouble(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		want := []byte{
			18, 0xc4, protocol.VarSpeed,
			0, 0, 0, 2, 'v', '1',
			protocol.TypeDouble,
			0x40, 0x26, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, // 11.2
		}
		assert.Equal(t, want, req)
		writeFrame(t, server, statusPayload(0xc4, protocol.RTypeOK, ""))
	}()

	assert.NoError(t, c.Vehicle.SetSpeed("v1", 11.2))
}

// TestGetParameter tests the key-carrying retrieval form.
func TestGetParameter(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		b := protocol.FromBytes(req)
		b.ReadU8() // length
		cmd, _ := b.ReadU8()
		assert.Equal(t, byte(0xa4), cmd)
		varID, _ := b.ReadU8()
		assert.Equal(t, byte(protocol.VarParameter), varID)
		objID, _ := b.ReadString()
		assert.Equal(t, "v1", objID)
		tag, _ := b.ReadU8()
		assert.Equal(t, byte(protocol.TypeString), tag)
		key, _ := b.ReadString()
		assert.Equal(t, "device.battery.capacity", key)

		writeFrame(t, server, getResponse(0xa4, protocol.VarParameter, "v1", protocol.TypeString,
			func(b *protocol.Buffer) { b.WriteString("35000") }))
	}()

	value, err := c.Vehicle.GetParameter("v1", "device.battery.capacity")
	assert.NoError(t, err)
	assert.Equal(t, "35000", value)
}

// TestSetParameter tests the compound key/value change form.
func TestSetParameter(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		req := readFrame(t, server)
		b := protocol.FromBytes(req)
		b.ReadU8()
		b.ReadU8()
		b.ReadU8()
		b.ReadString()
		tag, _ := b.ReadU8()
		assert.Equal(t, byte(protocol.TypeCompound), tag)
		count, _ := b.ReadI32()
		assert.Equal(t, int32(2), count)
		writeFrame(t, server, statusPayload(0xc4, protocol.RTypeOK, ""))
	}()

	assert.NoError(t, c.Vehicle.SetParameter("v1", "k", "v"))
}

// TestGetLeader tests the distance-parameterised neighbour query.
func TestGetLeader(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, getResponse(0xa4, protocol.VarLeader, "ego", protocol.TypeCompound,
			func(b *protocol.Buffer) {
				b.WriteI32(2)
				b.WriteU8(protocol.TypeString)
				b.WriteString("front")
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(8.25)
			}))
	}()

	id, gap, err := c.Vehicle.GetLeader("ego", 100)
	assert.NoError(t, err)
	assert.Equal(t, "front", id)
	assert.Equal(t, 8.25, gap)
}

// TestGetNextTLS tests decoding the upcoming-traffic-lights compound.
func TestGetNextTLS(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, getResponse(0xa4, protocol.VarNextTLS, "ego", protocol.TypeCompound,
			func(b *protocol.Buffer) {
				b.WriteI32(5)
				b.WriteU8(protocol.TypeInteger)
				b.WriteI32(1)
				b.WriteU8(protocol.TypeString)
				b.WriteString("tls_0")
				b.WriteU8(protocol.TypeInteger)
				b.WriteI32(3)
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(42.5)
				b.WriteU8(protocol.TypeByte)
				b.WriteU8('G')
			}))
	}()

	tls, err := c.Vehicle.GetNextTLS("ego")
	assert.NoError(t, err)
	assert.Equal(t, protocol.NextTLSList{
		{ID: "tls_0", TLIndex: 3, Dist: 42.5, State: 'G'},
	}, tls)
}

// TestGetBestLanes tests decoding the best-lanes compound including the
// signed lane offset.
func TestGetBestLanes(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, getResponse(0xa4, protocol.VarBestLanes, "ego", protocol.TypeCompound,
			func(b *protocol.Buffer) {
				b.WriteI32(6)
				b.WriteU8(protocol.TypeInteger)
				b.WriteI32(1)
				b.WriteU8(protocol.TypeString)
				b.WriteString("e0_1")
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(500)
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(0.3)
				b.WriteU8(protocol.TypeByte)
				b.WriteU8(0xff) // offset -1
				b.WriteU8(protocol.TypeUByte)
				b.WriteU8(1)
				b.WriteU8(protocol.TypeStringList)
				b.WriteStringList([]string{"e1_1"})
			}))
	}()

	lanes, err := c.Vehicle.GetBestLanes("ego")
	assert.NoError(t, err)
	assert.Equal(t, protocol.BestLanesList{
		{
			LaneID:             "e0_1",
			Length:             500,
			Occupation:         0.3,
			BestLaneOffset:     -1,
			AllowsContinuation: true,
			ContinuationLanes:  []string{"e1_1"},
		},
	}, lanes)
}

// TestGetVehicleData tests decoding the induction-loop record compound.
func TestGetVehicleData(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, getResponse(0xa0, protocol.LastStepVehicleData, "loop_0", protocol.TypeCompound,
			func(b *protocol.Buffer) {
				b.WriteI32(10)
				b.WriteU8(protocol.TypeInteger)
				b.WriteI32(1)
				b.WriteU8(protocol.TypeString)
				b.WriteString("v3")
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(4.5)
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(120.2)
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(-1)
				b.WriteU8(protocol.TypeString)
				b.WriteString("car")
			}))
	}()

	data, err := c.InductionLoop.GetVehicleData("loop_0")
	assert.NoError(t, err)
	assert.Equal(t, protocol.VehicleDataList{
		{ID: "v3", Length: 4.5, EntryTime: 120.2, LeaveTime: -1, TypeID: "car"},
	}, data)
}

// TestGetLinks tests decoding a lane's outgoing connections.
func TestGetLinks(t *testing.T) {
	c, server := pipeClient(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, getResponse(0xa3, protocol.LaneLinks, "e0_0", protocol.TypeCompound,
			func(b *protocol.Buffer) {
				b.WriteI32(9)
				b.WriteU8(protocol.TypeInteger)
				b.WriteI32(1)
				b.WriteU8(protocol.TypeString)
				b.WriteString("e1_0")
				b.WriteU8(protocol.TypeString)
				b.WriteString(":J0_0_0")
				b.WriteU8(protocol.TypeUByte)
				b.WriteU8(1)
				b.WriteU8(protocol.TypeUByte)
				b.WriteU8(1)
				b.WriteU8(protocol.TypeUByte)
				b.WriteU8(0)
				b.WriteU8(protocol.TypeString)
				b.WriteString("M")
				b.WriteU8(protocol.TypeString)
				b.WriteString("s")
				b.WriteU8(protocol.TypeDouble)
				b.WriteF64(12.3)
			}))
	}()

	links, err := c.Lane.GetLinks("e0_0")
	assert.NoError(t, err)
	assert.Equal(t, []protocol.Connection{
		{
			ApproachedLane:     "e1_0",
			ApproachedInternal: ":J0_0_0",
			HasPriority:        true,
			IsOpen:             true,
			HasFoe:             false,
			State:              "M",
			Direction:          "s",
			Length:             12.3,
		},
	}, links)
}

// TestReadStage tests the thirteen-component stage decoder directly.
func TestReadStage(t *testing.T) {
	b := protocol.NewBuffer()
	b.WriteI32(13)
	b.WriteU8(protocol.TypeInteger)
	b.WriteI32(3)
	b.WriteU8(protocol.TypeString)
	b.WriteString("DEFAULT_VEHTYPE")
	b.WriteU8(protocol.TypeString)
	b.WriteString("")
	b.WriteU8(protocol.TypeString)
	b.WriteString("")
	b.WriteU8(protocol.TypeStringList)
	b.WriteStringList([]string{"e0", "e1", "e2"})
	b.WriteU8(protocol.TypeDouble)
	b.WriteF64(84.2)
	b.WriteU8(protocol.TypeDouble)
	b.WriteF64(84.2)
	b.WriteU8(protocol.TypeDouble)
	b.WriteF64(950)
	b.WriteU8(protocol.TypeString)
	b.WriteString("")
	b.WriteU8(protocol.TypeDouble)
	b.WriteF64(-1)
	b.WriteU8(protocol.TypeDouble)
	b.WriteF64(0)
	b.WriteU8(protocol.TypeDouble)
	b.WriteF64(-1)
	b.WriteU8(protocol.TypeString)
	b.WriteString("")

	stage, err := readStage(b)
	assert.NoError(t, err)
	assert.Equal(t, int32(3), stage.Type)
	assert.Equal(t, []string{"e0", "e1", "e2"}, stage.Edges)
	assert.Equal(t, 84.2, stage.TravelTime)
	assert.Equal(t, 950.0, stage.Length)
	assert.Equal(t, 0, b.Remaining())
}

// TestReadStageRejectsTagMismatch tests that a component with the wrong
// tag stops decoding.
func TestReadStageRejectsTagMismatch(t *testing.T) {
	b := protocol.NewBuffer()
	b.WriteI32(13)
	b.WriteU8(protocol.TypeDouble) // must be TypeInteger
	b.WriteF64(3)

	_, err := readStage(b)
	assert.Error(t, err)
}

// TestProgramLogicRoundTrip tests that SetProgramLogic writes exactly the
// layout GetAllProgramLogics decodes.
func TestProgramLogicRoundTrip(t *testing.T) {
	logic := protocol.Logic{
		ProgramID:         "p1",
		Type:              0,
		CurrentPhaseIndex: 1,
		SubParameter:      map[string]string{"max-gap": "3.0"},
		Phases: []protocol.Phase{
			{Duration: 30, State: "GGrr", MinDur: 5, MaxDur: 60, Next: []int32{1}, Name: "main"},
			{Duration: 4, State: "yyrr", MinDur: 4, MaxDur: 4, Next: []int32{}, Name: ""},
		},
	}

	c, server := pipeClient(t)
	captured := make(chan []byte, 1)
	go func() {
		captured <- readFrame(t, server)
		writeFrame(t, server, statusPayload(0xc2, protocol.RTypeOK, ""))
	}()

	assert.NoError(t, c.TrafficLight.SetProgramLogic("tls_0", logic))

	// Re-read the encoded logic with the response-side decoder.
	b := protocol.FromBytes(<-captured)
	b.ReadU8()     // length
	b.ReadU8()     // set command
	b.ReadU8()     // variable
	b.ReadString() // object id
	tag, _ := b.ReadU8()
	assert.Equal(t, byte(protocol.TypeCompound), tag)
	b.ReadI32() // component count

	decoded, err := readLogic(wrapAsNestedLogic(b))
	assert.NoError(t, err)
	assert.Equal(t, logic, decoded)
}

// wrapAsNestedLogic prefixes the remaining bytes with the nested-compound
// header readLogic expects.
func wrapAsNestedLogic(b *protocol.Buffer) *protocol.Buffer {
	rest := b.Bytes()[b.Pos():]
	out := protocol.NewBuffer()
	out.WriteU8(protocol.TypeCompound)
	out.WriteI32(5)
	out.WriteBytes(rest)
	return out
}

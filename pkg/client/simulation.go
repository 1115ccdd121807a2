package client

import (
	"github.com/kalifun/tracilink/pkg/protocol"
)

// SimulationDomain extends the generic domain with the simulation-global
// queries and routing.
type SimulationDomain struct {
	*Domain
}

// GetTime returns the current simulation time in seconds.
func (d *SimulationDomain) GetTime() (float64, error) {
	return d.GetDouble(protocol.VarTime, "")
}

// GetDeltaT returns the length of one simulation step in seconds.
func (d *SimulationDomain) GetDeltaT() (float64, error) {
	return d.GetDouble(protocol.VarDeltaT, "")
}

// GetMinExpectedNumber returns how many vehicles are still active or
// waiting to depart. Zero means the scenario has drained.
func (d *SimulationDomain) GetMinExpectedNumber() (int32, error) {
	return d.GetInt(protocol.VarMinExpectedVehicles, "")
}

// GetDepartedIDList returns the ids of the vehicles that departed during
// the last step.
func (d *SimulationDomain) GetDepartedIDList() ([]string, error) {
	return d.GetStringList(protocol.VarDepartedVehiclesIDs, "")
}

// GetArrivedIDList returns the ids of the vehicles that arrived during the
// last step.
func (d *SimulationDomain) GetArrivedIDList() ([]string, error) {
	return d.GetStringList(protocol.VarArrivedVehiclesIDs, "")
}

// FindRoute computes the fastest route between two edges for the given
// vehicle type. The result is a driving stage whose Edges carry the route.
func (d *SimulationDomain) FindRoute(fromEdge, toEdge, vType string, depart float64, routingMode int32) (protocol.Stage, error) {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(5)
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(fromEdge)
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(toEdge)
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(vType)
	extra.WriteU8(protocol.TypeDouble)
	extra.WriteF64(depart)
	extra.WriteU8(protocol.TypeInteger)
	extra.WriteI32(routingMode)
	ok, err := d.get(protocol.FindRoute, "", extra, protocol.TypeCompound)
	if err != nil || !ok {
		return protocol.Stage{}, err
	}
	return readStage(d.client.input)
}

// ConvertRoad converts a Cartesian position into a road-network position.
func (d *SimulationDomain) ConvertRoad(pos protocol.Position) (protocol.RoadPosition, error) {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(2)
	extra.WriteU8(protocol.Position2D)
	extra.WriteF64(pos.X)
	extra.WriteF64(pos.Y)
	extra.WriteU8(protocol.TypeUByte)
	extra.WriteU8(protocol.PositionRoadmap)
	ok, err := d.get(protocol.PositionConversion, "", extra, protocol.PositionRoadmap)
	if err != nil || !ok {
		return protocol.RoadPosition{}, err
	}
	in := d.client.input
	var rp protocol.RoadPosition
	if rp.EdgeID, err = in.ReadString(); err != nil {
		return protocol.RoadPosition{}, err
	}
	if rp.Pos, err = in.ReadF64(); err != nil {
		return protocol.RoadPosition{}, err
	}
	idx, err := in.ReadU8()
	if err != nil {
		return protocol.RoadPosition{}, err
	}
	rp.LaneIndex = int32(idx)
	return rp, nil
}

package client

import (
	"github.com/kalifun/tracilink/pkg/protocol"
)

// VehicleDomain extends the generic domain with the vehicle-only composite
// operations and the kinematics subscription shorthand.
type VehicleDomain struct {
	*Domain
}

// kinematicsVars is the variable set of SubscribeKinematics, in cache order.
var kinematicsVars = []byte{
	protocol.VarPosition,
	protocol.VarSpeed,
	protocol.VarAcceleration,
	protocol.VarAngle,
}

// Kinematics is the per-step motion state of one subscribed vehicle.
type Kinematics struct {
	Position     protocol.Position
	Speed        float64
	Acceleration float64
	Angle        float64
}

// VehicleParams describes a vehicle to insert. Zero-valued fields fall back
// to the simulator's defaults.
type VehicleParams struct {
	RouteID        string
	TypeID         string
	Depart         string
	DepartLane     string
	DepartPos      string
	DepartSpeed    string
	ArrivalLane    string
	ArrivalPos     string
	ArrivalSpeed   string
	FromTaz        string
	ToTaz          string
	Line           string
	PersonCapacity int32
	PersonNumber   int32
}

func (p *VehicleParams) applyDefaults() {
	if p.TypeID == "" {
		p.TypeID = "DEFAULT_VEHTYPE"
	}
	if p.Depart == "" {
		p.Depart = "now"
	}
	if p.DepartLane == "" {
		p.DepartLane = "first"
	}
	if p.DepartPos == "" {
		p.DepartPos = "base"
	}
	if p.DepartSpeed == "" {
		p.DepartSpeed = "0"
	}
	if p.ArrivalLane == "" {
		p.ArrivalLane = "current"
	}
	if p.ArrivalPos == "" {
		p.ArrivalPos = "max"
	}
	if p.ArrivalSpeed == "" {
		p.ArrivalSpeed = "current"
	}
}

// Add inserts a new vehicle into the running simulation.
func (d *VehicleDomain) Add(vehID string, params VehicleParams) error {
	params.applyDefaults()
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(14)
	for _, s := range []string{
		params.RouteID, params.TypeID, params.Depart,
		params.DepartLane, params.DepartPos, params.DepartSpeed,
		params.ArrivalLane, params.ArrivalPos, params.ArrivalSpeed,
		params.FromTaz, params.ToTaz, params.Line,
	} {
		extra.WriteU8(protocol.TypeString)
		extra.WriteString(s)
	}
	extra.WriteU8(protocol.TypeInteger)
	extra.WriteI32(params.PersonCapacity)
	extra.WriteU8(protocol.TypeInteger)
	extra.WriteI32(params.PersonNumber)
	return d.set(protocol.AddFull, vehID, extra)
}

// Remove removes a vehicle from the simulation with the given reason code.
func (d *VehicleDomain) Remove(vehID string, reason byte) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeByte)
	extra.WriteU8(reason)
	return d.set(protocol.Remove, vehID, extra)
}

// ChangeLane requests a lane change held for the given duration.
func (d *VehicleDomain) ChangeLane(vehID string, laneIndex byte, duration float64) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(2)
	extra.WriteU8(protocol.TypeByte)
	extra.WriteU8(laneIndex)
	extra.WriteU8(protocol.TypeDouble)
	extra.WriteF64(duration)
	return d.set(protocol.CmdChangeLane, vehID, extra)
}

// GetSpeed returns the vehicle's current speed in m/s.
func (d *VehicleDomain) GetSpeed(vehID string) (float64, error) {
	return d.GetDouble(protocol.VarSpeed, vehID)
}

// GetAngle returns the vehicle's heading in degrees.
func (d *VehicleDomain) GetAngle(vehID string) (float64, error) {
	return d.GetDouble(protocol.VarAngle, vehID)
}

// GetXY returns the vehicle's position on the simulation plane.
func (d *VehicleDomain) GetXY(vehID string) (protocol.Position, error) {
	return d.GetPosition(protocol.VarPosition, vehID)
}

// GetRoadID returns the id of the edge the vehicle is on.
func (d *VehicleDomain) GetRoadID(vehID string) (string, error) {
	return d.GetString(protocol.VarRoadID, vehID)
}

// GetRouteID returns the id of the vehicle's current route.
func (d *VehicleDomain) GetRouteID(vehID string) (string, error) {
	return d.GetString(protocol.VarRouteID, vehID)
}

// SetSpeed overrides the vehicle's speed; a negative value returns control
// to the car-following model.
func (d *VehicleDomain) SetSpeed(vehID string, speed float64) error {
	return d.SetDouble(protocol.VarSpeed, vehID, speed)
}

// GetNextTLS returns the traffic lights ahead of the vehicle on its route,
// nearest first.
func (d *VehicleDomain) GetNextTLS(vehID string) (protocol.NextTLSList, error) {
	ok, err := d.get(protocol.VarNextTLS, vehID, nil, protocol.TypeCompound)
	if err != nil || !ok {
		return nil, err
	}
	in := d.client.input
	if _, err := in.ReadI32(); err != nil { // component count
		return nil, err
	}
	n, err := readTaggedInt(in)
	if err != nil {
		return nil, err
	}
	list := make(protocol.NextTLSList, 0, n)
	for i := int32(0); i < n; i++ {
		var t protocol.NextTLSData
		if t.ID, err = readTaggedString(in); err != nil {
			return nil, err
		}
		if t.TLIndex, err = readTaggedInt(in); err != nil {
			return nil, err
		}
		if t.Dist, err = readTaggedDouble(in); err != nil {
			return nil, err
		}
		if t.State, err = readTaggedByte(in); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, nil
}

// GetBestLanes returns the lane quality records for the vehicle's upcoming
// lanes.
func (d *VehicleDomain) GetBestLanes(vehID string) (protocol.BestLanesList, error) {
	ok, err := d.get(protocol.VarBestLanes, vehID, nil, protocol.TypeCompound)
	if err != nil || !ok {
		return nil, err
	}
	in := d.client.input
	if _, err := in.ReadI32(); err != nil { // component count
		return nil, err
	}
	n, err := readTaggedInt(in)
	if err != nil {
		return nil, err
	}
	list := make(protocol.BestLanesList, 0, n)
	for i := int32(0); i < n; i++ {
		var b protocol.BestLanesData
		if b.LaneID, err = readTaggedString(in); err != nil {
			return nil, err
		}
		if b.Length, err = readTaggedDouble(in); err != nil {
			return nil, err
		}
		if b.Occupation, err = readTaggedDouble(in); err != nil {
			return nil, err
		}
		offset, err := readTaggedByte(in)
		if err != nil {
			return nil, err
		}
		b.BestLaneOffset = int32(int8(offset))
		cont, err := readTaggedUByte(in)
		if err != nil {
			return nil, err
		}
		b.AllowsContinuation = cont != 0
		if b.ContinuationLanes, err = readTaggedStringList(in); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, nil
}

// GetLeader returns the id of and gap to the vehicle ahead within dist.
// An empty id means no leader was found.
func (d *VehicleDomain) GetLeader(vehID string, dist float64) (string, float64, error) {
	return d.getNeighbor(protocol.VarLeader, vehID, dist)
}

// GetFollower returns the id of and gap to the vehicle behind within dist.
// An empty id means no follower was found.
func (d *VehicleDomain) GetFollower(vehID string, dist float64) (string, float64, error) {
	return d.getNeighbor(protocol.VarFollower, vehID, dist)
}

func (d *VehicleDomain) getNeighbor(varID byte, vehID string, dist float64) (string, float64, error) {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeDouble)
	extra.WriteF64(dist)
	ok, err := d.get(varID, vehID, extra, protocol.TypeCompound)
	if err != nil || !ok {
		return "", 0, err
	}
	in := d.client.input
	if _, err := in.ReadI32(); err != nil { // component count
		return "", 0, err
	}
	id, err := readTaggedString(in)
	if err != nil {
		return "", 0, err
	}
	gap, err := readTaggedDouble(in)
	if err != nil {
		return "", 0, err
	}
	return id, gap, nil
}

// SubscribeKinematics subscribes position, speed, acceleration and angle of
// one vehicle. Read the values back with SubscribedKinematics after each
// step.
func (d *VehicleDomain) SubscribeKinematics(vehID string, begin, end float64) error {
	return d.Subscribe(vehID, begin, end, kinematicsVars)
}

// SubscribedKinematics assembles the kinematics view of one vehicle from
// the most recent step's cache. The boolean is false when the step carried
// no subscription results for the vehicle.
func (d *VehicleDomain) SubscribedKinematics(vehID string) (Kinematics, bool) {
	results, ok := d.Results(vehID)
	if !ok {
		return Kinematics{}, false
	}
	var k Kinematics
	if v, ok := results[protocol.VarPosition].(protocol.Position); ok {
		k.Position = v
	}
	if v, ok := results[protocol.VarSpeed].(protocol.Double); ok {
		k.Speed = float64(v)
	}
	if v, ok := results[protocol.VarAcceleration].(protocol.Double); ok {
		k.Acceleration = float64(v)
	}
	if v, ok := results[protocol.VarAngle].(protocol.Double); ok {
		k.Angle = float64(v)
	}
	return k, true
}

// ---------------------------------------------------------------------------
// Context-subscription filters
// ---------------------------------------------------------------------------

// AddFilterNoOpposite restricts the previous context subscription to the
// vehicle's own road side.
func (d *VehicleDomain) AddFilterNoOpposite() error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeNoOpposite, nil)
}

// AddFilterDownstreamDistance bounds the previous context subscription
// downstream of the vehicle.
func (d *VehicleDomain) AddFilterDownstreamDistance(dist float64) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeDownstreamDist, doubleExtra(dist))
}

// AddFilterUpstreamDistance bounds the previous context subscription
// upstream of the vehicle.
func (d *VehicleDomain) AddFilterUpstreamDistance(dist float64) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeUpstreamDist, doubleExtra(dist))
}

// AddFilterLeadFollow restricts the previous context subscription to the
// immediate leader and follower on the given lanes.
func (d *VehicleDomain) AddFilterLeadFollow(lanes []int8) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeLeadFollow, laneListExtra(lanes))
}

// AddFilterLanes restricts the previous context subscription to the given
// lanes relative to the vehicle's own.
func (d *VehicleDomain) AddFilterLanes(lanes []int8) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeLanes, laneListExtra(lanes))
}

// AddFilterVClass restricts the previous context subscription to vehicles
// of the given vehicle classes.
func (d *VehicleDomain) AddFilterVClass(classes []string) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeVClass, stringListExtra(classes))
}

// AddFilterVType restricts the previous context subscription to vehicles
// of the given types.
func (d *VehicleDomain) AddFilterVType(types []string) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeVType, stringListExtra(types))
}

// AddFilterFieldOfVision restricts the previous context subscription to a
// cone of the given opening angle in degrees.
func (d *VehicleDomain) AddFilterFieldOfVision(angle float64) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeFieldOfVision, doubleExtra(angle))
}

// AddFilterLateralDistance bounds the previous context subscription
// laterally.
func (d *VehicleDomain) AddFilterLateralDistance(dist float64) error {
	return d.client.AddSubscriptionFilter(protocol.FilterTypeLateralDist, doubleExtra(dist))
}

func doubleExtra(v float64) *protocol.Buffer {
	b := protocol.NewBuffer()
	b.WriteU8(protocol.TypeDouble)
	b.WriteF64(v)
	return b
}

func stringListExtra(list []string) *protocol.Buffer {
	b := protocol.NewBuffer()
	b.WriteU8(protocol.TypeStringList)
	b.WriteStringList(list)
	return b
}

func laneListExtra(lanes []int8) *protocol.Buffer {
	b := protocol.NewBuffer()
	b.WriteU8(byte(len(lanes)))
	for _, l := range lanes {
		b.WriteU8(byte(l))
	}
	return b
}

package protocol

import (
	"github.com/kalifun/tracilink/errors"
)

// Value is the closed union of every value the server can send back.
// Scalar and list variants map one-to-one to the TYPE_* / POSITION_* tags;
// the composite variants are decoded from TypeCompound payloads by the
// domain operations that know their layout.
type Value interface {
	value()
}

// Int carries TypeInteger results; TypeUByte results are promoted to Int to
// stay numerically uniform with signed integers.
type Int int32

// Double carries TypeDouble results.
type Double float64

// String carries TypeString results.
type String string

// StringList carries TypeStringList results.
type StringList []string

// DoubleList carries TypeDoubleList results.
type DoubleList []float64

// Color is an RGBA colour, each channel 0-255.
type Color struct {
	R, G, B, A byte
}

// Position is a 2-D or 3-D Cartesian position. For 2-D positions Z holds
// InvalidDoubleValue.
type Position struct {
	X, Y, Z float64
}

// NewPosition2D builds a 2-D position.
func NewPosition2D(x, y float64) Position {
	return Position{X: x, Y: y, Z: InvalidDoubleValue}
}

// NewPosition3D builds a 3-D position.
func NewPosition3D(x, y, z float64) Position {
	return Position{X: x, Y: y, Z: z}
}

// Is3D reports whether the position carries a height component.
func (p Position) Is3D() bool { return p.Z != InvalidDoubleValue }

// Polygon is a list of 2-D vertices.
type Polygon []Position

// RoadPosition locates a point on the road network.
type RoadPosition struct {
	EdgeID    string
	Pos       float64
	LaneIndex int32
}

// Phase is one phase of a traffic-light programme.
type Phase struct {
	Duration float64
	State    string
	MinDur   float64
	MaxDur   float64
	Next     []int32
	Name     string
}

// Logic is a complete traffic-light programme.
type Logic struct {
	ProgramID         string
	Type              int32
	CurrentPhaseIndex int32
	Phases            []Phase
	SubParameter      map[string]string
}

// LogicList carries a decoded set of traffic-light programmes.
type LogicList []Logic

// Connection is one lane-to-lane connection leaving a lane.
type Connection struct {
	ApproachedLane     string
	ApproachedInternal string
	HasPriority        bool
	IsOpen             bool
	HasFoe             bool
	State              string
	Direction          string
	Length             float64
}

// ConnectionList carries the connections of a lane grouped per link.
type ConnectionList [][]Connection

// Link is one controlled lane-to-lane link of a traffic light.
type Link struct {
	FromLane string
	ViaLane  string
	ToLane   string
}

// Stage is one journey stage of a person, or a found route.
type Stage struct {
	Type       int32
	VType      string
	Line       string
	DestStop   string
	Edges      []string
	TravelTime float64
	Cost       float64
	Length     float64
	Intended   string
	Depart     float64
	DepartPos  float64
	ArrivalPos float64
	Description string
}

// VehicleData is the per-vehicle record of an induction-loop detector.
type VehicleData struct {
	ID        string
	Length    float64
	EntryTime float64
	LeaveTime float64
	TypeID    string
}

// VehicleDataList carries the induction-loop records of one step.
type VehicleDataList []VehicleData

// NextTLSData describes one upcoming traffic light ahead of a vehicle.
type NextTLSData struct {
	ID      string
	TLIndex int32
	Dist    float64
	State   byte
}

// NextTLSList carries the upcoming traffic lights of a vehicle.
type NextTLSList []NextTLSData

// BestLanesData is the best-lane record for one lane ahead of a vehicle.
type BestLanesData struct {
	LaneID             string
	Length             float64
	Occupation         float64
	BestLaneOffset     int32
	AllowsContinuation bool
	ContinuationLanes  []string
}

// BestLanesList carries the best-lane records of a vehicle.
type BestLanesList []BestLanesData

func (Int) value()             {}
func (Double) value()          {}
func (String) value()          {}
func (StringList) value()      {}
func (DoubleList) value()      {}
func (Color) value()           {}
func (Position) value()        {}
func (Polygon) value()         {}
func (LogicList) value()       {}
func (ConnectionList) value()  {}
func (Stage) value()           {}
func (VehicleDataList) value() {}
func (NextTLSList) value()     {}
func (BestLanesList) value()   {}

// Results maps a variable identifier to its most recent pushed value.
type Results map[byte]Value

// SubscriptionResults maps an object identifier to its variable results.
type SubscriptionResults map[string]Results

// ContextSubscriptionResults maps an anchor object identifier to the full
// result set of all objects found within its context.
type ContextSubscriptionResults map[string]SubscriptionResults

// ReadValue decodes one value whose type tag has already been consumed.
// An unrecognised tag is rejected as a protocol error: decoding cannot
// continue past a value of unknown size without desynchronising the cursor.
func ReadValue(b *Buffer, typeTag byte) (Value, error) {
	switch typeTag {
	case TypeDouble:
		v, err := b.ReadF64()
		if err != nil {
			return nil, err
		}
		return Double(v), nil
	case TypeInteger:
		v, err := b.ReadI32()
		if err != nil {
			return nil, err
		}
		return Int(v), nil
	case TypeString:
		v, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		return String(v), nil
	case TypeStringList:
		v, err := b.ReadStringList()
		if err != nil {
			return nil, err
		}
		return StringList(v), nil
	case TypeDoubleList:
		v, err := b.ReadF64List()
		if err != nil {
			return nil, err
		}
		return DoubleList(v), nil
	case TypeColor:
		return readColor(b)
	case Position2D:
		x, y, err := readXY(b)
		if err != nil {
			return nil, err
		}
		return NewPosition2D(x, y), nil
	case Position3D:
		x, y, err := readXY(b)
		if err != nil {
			return nil, err
		}
		z, err := b.ReadF64()
		if err != nil {
			return nil, err
		}
		return NewPosition3D(x, y, z), nil
	case TypePolygon:
		p, err := ReadPolygon(b)
		if err != nil {
			return nil, err
		}
		return p, nil
	case TypeUByte:
		v, err := b.ReadU8()
		if err != nil {
			return nil, err
		}
		return Int(v), nil
	default:
		return nil, errors.Protocolf("unknown value type tag 0x%02x", typeTag)
	}
}

func readColor(b *Buffer) (Value, error) {
	var c Color
	for _, ch := range []*byte{&c.R, &c.G, &c.B, &c.A} {
		v, err := b.ReadU8()
		if err != nil {
			return nil, err
		}
		*ch = v
	}
	return c, nil
}

func readXY(b *Buffer) (float64, float64, error) {
	x, err := b.ReadF64()
	if err != nil {
		return 0, 0, err
	}
	y, err := b.ReadF64()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// ReadPolygon decodes a TypePolygon payload: a single count byte followed by
// that many 2-D points.
func ReadPolygon(b *Buffer) (Polygon, error) {
	n, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	poly := make(Polygon, 0, n)
	for i := byte(0); i < n; i++ {
		x, y, err := readXY(b)
		if err != nil {
			return nil, err
		}
		poly = append(poly, NewPosition2D(x, y))
	}
	return poly, nil
}

package protocol

// Top-level commands.
const (
	CmdGetVersion            byte = 0x00
	CmdLoad                  byte = 0x01
	CmdSimStep               byte = 0x02
	CmdSetOrder              byte = 0x03
	CmdAddSubscriptionFilter byte = 0x7e
	CmdClose                 byte = 0x7f
)

// Value-type tags.
const (
	PositionLonLat    byte = 0x00
	Position2D        byte = 0x01
	PositionLonLatAlt byte = 0x02
	Position3D        byte = 0x03
	PositionRoadmap   byte = 0x04
	TypePolygon       byte = 0x06
	TypeUByte         byte = 0x07
	TypeByte          byte = 0x08
	TypeInteger       byte = 0x09
	TypeDouble        byte = 0x0b
	TypeString        byte = 0x0c
	TypeStringList    byte = 0x0e
	TypeCompound      byte = 0x0f
	TypeDoubleList    byte = 0x10
	TypeColor         byte = 0x11
)

// Result-status types carried in every response.
const (
	RTypeOK             byte = 0x00
	RTypeNotImplemented byte = 0x01
	RTypeErr            byte = 0xff
)

// A response to a GET command echoes the request command id plus this offset.
const GetResponseOffset byte = 0x10

// Special values the server uses for "no value".
const (
	InvalidDoubleValue float64 = -1073741824.0
	InvalidIntValue    int32   = -1073741824
	MaxOrder           int32   = 1073741824
)

// Subscription filter types (CmdAddSubscriptionFilter).
const (
	FilterTypeNone           byte = 0x00
	FilterTypeLanes          byte = 0x01
	FilterTypeNoOpposite     byte = 0x02
	FilterTypeDownstreamDist byte = 0x03
	FilterTypeUpstreamDist   byte = 0x04
	FilterTypeLeadFollow     byte = 0x05
	FilterTypeTurn           byte = 0x07
	FilterTypeVClass         byte = 0x08
	FilterTypeVType          byte = 0x09
	FilterTypeFieldOfVision  byte = 0x0a
	FilterTypeLateralDist    byte = 0x0b
)

// Variable identifiers shared by several domains.
const (
	IDList      byte = 0x00
	IDCount     byte = 0x01
	VarName     byte = 0x1b
	VarParameter byte = 0x7e
)

// Vehicle, person and lane variables.
const (
	VarSpeed        byte = 0x40
	VarMaxSpeed     byte = 0x41
	VarPosition     byte = 0x42
	VarAngle        byte = 0x43
	VarLength       byte = 0x44
	VarColor        byte = 0x45
	VarWidth        byte = 0x4d
	VarShape        byte = 0x4e
	VarType         byte = 0x4f
	VarRoadID       byte = 0x50
	VarLaneID       byte = 0x51
	VarLaneIndex    byte = 0x52
	VarRouteID      byte = 0x53
	VarEdges        byte = 0x54
	VarLanePosition byte = 0x56
	VarPosition3D   byte = 0x39
	VarAcceleration byte = 0x72
	VarNextTLS      byte = 0x70
	VarBestLanes    byte = 0xb2
	VarLeader       byte = 0x68
	VarFollower     byte = 0x78
	VarStage        byte = 0xc0
	VarWaitingTime  byte = 0x7a
	VarSignals      byte = 0x5b
	VarAllowedSpeed byte = 0xb7
	LaneLinkNumber  byte = 0x30
	LaneEdgeID      byte = 0x31
	LaneLinks       byte = 0x33
	LaneAllowed     byte = 0x34
	LaneDisallowed  byte = 0x35
	CmdChangeLane   byte = 0x13
	Add             byte = 0x80
	Remove          byte = 0x81
	AddFull         byte = 0x85
	FindRoute       byte = 0x86
	MoveToXY        byte = 0xb4
)

// Traffic-light variables.
const (
	TLRedYellowGreenState  byte = 0x20
	TLPhaseIndex           byte = 0x22
	TLProgram              byte = 0x23
	TLPhaseDuration        byte = 0x24
	TLControlledLanes      byte = 0x26
	TLControlledLinks      byte = 0x27
	TLCurrentPhase         byte = 0x28
	TLCurrentProgram       byte = 0x29
	TLCompleteDefinitionRYG byte = 0x2b
	TLCompleteProgramRYG   byte = 0x2c
	TLNextSwitch           byte = 0x2d
)

// Detector variables.
const (
	LastStepVehicleNumber        byte = 0x10
	LastStepMeanSpeed            byte = 0x11
	LastStepVehicleIDList        byte = 0x12
	LastStepOccupancy            byte = 0x13
	LastStepVehicleHaltingNumber byte = 0x14
	LastStepMeanLength           byte = 0x15
	LastStepTimeSinceDetection   byte = 0x16
	LastStepVehicleData          byte = 0x17
)

// Simulation-global variables.
const (
	VarTime                   byte = 0x66
	VarDeltaT                 byte = 0x7b
	VarNetBoundingBox         byte = 0x7c
	VarMinExpectedVehicles    byte = 0x7d
	VarLoadedVehiclesNumber   byte = 0x71
	VarLoadedVehiclesIDs      byte = 0x72
	VarDepartedVehiclesNumber byte = 0x73
	VarDepartedVehiclesIDs    byte = 0x74
	VarArrivedVehiclesNumber  byte = 0x79
	VarArrivedVehiclesIDs     byte = 0x7a
	PositionConversion        byte = 0x82
	DistanceRequest           byte = 0x83
	CmdSaveSimState           byte = 0x95
	CmdLoadSimState           byte = 0x96
	CmdMessage                byte = 0x65
)

package client

import (
	"github.com/kalifun/tracilink/pkg/protocol"
)

// InductionLoopDomain extends the generic domain with per-vehicle detector
// record decoding.
type InductionLoopDomain struct {
	*Domain
}

// GetLastStepVehicleNumber returns how many vehicles crossed the detector
// during the last step.
func (d *InductionLoopDomain) GetLastStepVehicleNumber(loopID string) (int32, error) {
	return d.GetInt(protocol.LastStepVehicleNumber, loopID)
}

// GetLastStepMeanSpeed returns the mean speed over the detector during the
// last step.
func (d *InductionLoopDomain) GetLastStepMeanSpeed(loopID string) (float64, error) {
	return d.GetDouble(protocol.LastStepMeanSpeed, loopID)
}

// GetLastStepVehicleIDs returns the ids of the vehicles on the detector
// during the last step.
func (d *InductionLoopDomain) GetLastStepVehicleIDs(loopID string) ([]string, error) {
	return d.GetStringList(protocol.LastStepVehicleIDList, loopID)
}

// GetTimeSinceDetection returns the seconds since the last vehicle
// detection.
func (d *InductionLoopDomain) GetTimeSinceDetection(loopID string) (float64, error) {
	return d.GetDouble(protocol.LastStepTimeSinceDetection, loopID)
}

// GetVehicleData returns the per-vehicle entry/leave records of the last
// step. A vehicle still on the detector has a negative leave time.
func (d *InductionLoopDomain) GetVehicleData(loopID string) (protocol.VehicleDataList, error) {
	ok, err := d.get(protocol.LastStepVehicleData, loopID, nil, protocol.TypeCompound)
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
	list := make(protocol.VehicleDataList, 0, n)
	for i := int32(0); i < n; i++ {
		var v protocol.VehicleData
		if v.ID, err = readTaggedString(in); err != nil {
			return nil, err
		}
		if v.Length, err = readTaggedDouble(in); err != nil {
			return nil, err
		}
		if v.EntryTime, err = readTaggedDouble(in); err != nil {
			return nil, err
		}
		if v.LeaveTime, err = readTaggedDouble(in); err != nil {
			return nil, err
		}
		if v.TypeID, err = readTaggedString(in); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

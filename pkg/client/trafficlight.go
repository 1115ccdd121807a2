package client

import (
	"github.com/kalifun/tracilink/pkg/protocol"
)

// TrafficLightDomain extends the generic domain with programme-logic and
// controlled-link decoding.
type TrafficLightDomain struct {
	*Domain
}

// GetRedYellowGreenState returns the current signal state string.
func (d *TrafficLightDomain) GetRedYellowGreenState(tlsID string) (string, error) {
	return d.GetString(protocol.TLRedYellowGreenState, tlsID)
}

// SetRedYellowGreenState forces a signal state string onto the light.
func (d *TrafficLightDomain) SetRedYellowGreenState(tlsID, state string) error {
	return d.SetString(protocol.TLRedYellowGreenState, tlsID, state)
}

// GetAllProgramLogics returns every programme definition of one traffic
// light.
func (d *TrafficLightDomain) GetAllProgramLogics(tlsID string) (protocol.LogicList, error) {
	ok, err := d.get(protocol.TLCompleteDefinitionRYG, tlsID, nil, protocol.TypeCompound)
	if err != nil || !ok {
		return nil, err
	}
	in := d.client.input
	if _, err := in.ReadI32(); err != nil { // component count
		return nil, err
	}
	numLogics, err := readTaggedInt(in)
	if err != nil {
		return nil, err
	}
	logics := make(protocol.LogicList, 0, numLogics)
	for i := int32(0); i < numLogics; i++ {
		logic, err := readLogic(in)
		if err != nil {
			return nil, err
		}
		logics = append(logics, logic)
	}
	return logics, nil
}

func readLogic(in *protocol.Buffer) (protocol.Logic, error) {
	var l protocol.Logic
	if _, err := readNestedCompoundCount(in); err != nil {
		return l, err
	}
	var err error
	if l.ProgramID, err = readTaggedString(in); err != nil {
		return l, err
	}
	if l.Type, err = readTaggedInt(in); err != nil {
		return l, err
	}
	numParams, err := readNestedCompoundCount(in)
	if err != nil {
		return l, err
	}
	l.SubParameter = make(map[string]string, numParams)
	for i := int32(0); i < numParams; i++ {
		pair, err := readTaggedStringList(in)
		if err != nil {
			return l, err
		}
		if len(pair) == 2 {
			l.SubParameter[pair[0]] = pair[1]
		}
	}
	if l.CurrentPhaseIndex, err = readTaggedInt(in); err != nil {
		return l, err
	}
	numPhases, err := readNestedCompoundCount(in)
	if err != nil {
		return l, err
	}
	l.Phases = make([]protocol.Phase, 0, numPhases)
	for i := int32(0); i < numPhases; i++ {
		phase, err := readPhase(in)
		if err != nil {
			return l, err
		}
		l.Phases = append(l.Phases, phase)
	}
	return l, nil
}

func readPhase(in *protocol.Buffer) (protocol.Phase, error) {
	var p protocol.Phase
	if _, err := readNestedCompoundCount(in); err != nil {
		return p, err
	}
	var err error
	if p.Duration, err = readTaggedDouble(in); err != nil {
		return p, err
	}
	if p.State, err = readTaggedString(in); err != nil {
		return p, err
	}
	if p.MinDur, err = readTaggedDouble(in); err != nil {
		return p, err
	}
	if p.MaxDur, err = readTaggedDouble(in); err != nil {
		return p, err
	}
	numNext, err := readNestedCompoundCount(in)
	if err != nil {
		return p, err
	}
	p.Next = make([]int32, 0, numNext)
	for i := int32(0); i < numNext; i++ {
		n, err := readTaggedInt(in)
		if err != nil {
			return p, err
		}
		p.Next = append(p.Next, n)
	}
	if p.Name, err = readTaggedString(in); err != nil {
		return p, err
	}
	return p, nil
}

// SetProgramLogic installs a complete programme definition on one traffic
// light, the exact inverse of GetAllProgramLogics' per-logic layout.
func (d *TrafficLightDomain) SetProgramLogic(tlsID string, logic protocol.Logic) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(5)
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(logic.ProgramID)
	extra.WriteU8(protocol.TypeInteger)
	extra.WriteI32(logic.Type)
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(int32(len(logic.SubParameter)))
	for k, v := range logic.SubParameter {
		extra.WriteU8(protocol.TypeStringList)
		extra.WriteStringList([]string{k, v})
	}
	extra.WriteU8(protocol.TypeInteger)
	extra.WriteI32(logic.CurrentPhaseIndex)
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(int32(len(logic.Phases)))
	for _, p := range logic.Phases {
		extra.WriteU8(protocol.TypeCompound)
		extra.WriteI32(6)
		extra.WriteU8(protocol.TypeDouble)
		extra.WriteF64(p.Duration)
		extra.WriteU8(protocol.TypeString)
		extra.WriteString(p.State)
		extra.WriteU8(protocol.TypeDouble)
		extra.WriteF64(p.MinDur)
		extra.WriteU8(protocol.TypeDouble)
		extra.WriteF64(p.MaxDur)
		extra.WriteU8(protocol.TypeCompound)
		extra.WriteI32(int32(len(p.Next)))
		for _, n := range p.Next {
			extra.WriteU8(protocol.TypeInteger)
			extra.WriteI32(n)
		}
		extra.WriteU8(protocol.TypeString)
		extra.WriteString(p.Name)
	}
	return d.set(protocol.TLCompleteProgramRYG, tlsID, extra)
}

// GetControlledLinks returns the lane-to-lane links of each signal of one
// traffic light, grouped per signal index.
func (d *TrafficLightDomain) GetControlledLinks(tlsID string) ([][]protocol.Link, error) {
	ok, err := d.get(protocol.TLControlledLinks, tlsID, nil, protocol.TypeCompound)
	if err != nil || !ok {
		return nil, err
	}
	in := d.client.input
	if _, err := in.ReadI32(); err != nil { // component count
		return nil, err
	}
	numSignals, err := readTaggedInt(in)
	if err != nil {
		return nil, err
	}
	signals := make([][]protocol.Link, 0, numSignals)
	for i := int32(0); i < numSignals; i++ {
		numLinks, err := readTaggedInt(in)
		if err != nil {
			return nil, err
		}
		links := make([]protocol.Link, 0, numLinks)
		for j := int32(0); j < numLinks; j++ {
			lanes, err := readTaggedStringList(in)
			if err != nil {
				return nil, err
			}
			var link protocol.Link
			if len(lanes) >= 3 {
				link = protocol.Link{FromLane: lanes[0], ToLane: lanes[1], ViaLane: lanes[2]}
			}
			links = append(links, link)
		}
		signals = append(signals, links)
	}
	return signals, nil
}

package client

import (
	"github.com/kalifun/tracilink/pkg/protocol"
)

// LaneDomain extends the generic domain with link decoding.
type LaneDomain struct {
	*Domain
}

// GetEdgeID returns the id of the edge the lane belongs to.
func (d *LaneDomain) GetEdgeID(laneID string) (string, error) {
	return d.GetString(protocol.LaneEdgeID, laneID)
}

// GetLinkNumber returns how many connections leave the lane.
func (d *LaneDomain) GetLinkNumber(laneID string) (int32, error) {
	ok, err := d.get(protocol.LaneLinkNumber, laneID, nil, protocol.TypeUByte)
	if err != nil || !ok {
		return 0, err
	}
	n, err := d.client.input.ReadU8()
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// GetLinks returns every connection leaving the lane.
func (d *LaneDomain) GetLinks(laneID string) ([]protocol.Connection, error) {
	ok, err := d.get(protocol.LaneLinks, laneID, nil, protocol.TypeCompound)
	if err != nil || !ok {
		return nil, err
	}
	in := d.client.input
	if _, err := in.ReadI32(); err != nil { // component count
		return nil, err
	}
	numLinks, err := readTaggedInt(in)
	if err != nil {
		return nil, err
	}
	links := make([]protocol.Connection, 0, numLinks)
	for i := int32(0); i < numLinks; i++ {
		var c protocol.Connection
		if c.ApproachedLane, err = readTaggedString(in); err != nil {
			return nil, err
		}
		if c.ApproachedInternal, err = readTaggedString(in); err != nil {
			return nil, err
		}
		prio, err := readTaggedUByte(in)
		if err != nil {
			return nil, err
		}
		c.HasPriority = prio != 0
		open, err := readTaggedUByte(in)
		if err != nil {
			return nil, err
		}
		c.IsOpen = open != 0
		foe, err := readTaggedUByte(in)
		if err != nil {
			return nil, err
		}
		c.HasFoe = foe != 0
		if c.State, err = readTaggedString(in); err != nil {
			return nil, err
		}
		if c.Direction, err = readTaggedString(in); err != nil {
			return nil, err
		}
		if c.Length, err = readTaggedDouble(in); err != nil {
			return nil, err
		}
		links = append(links, c)
	}
	return links, nil
}

// GetAllowed returns the vehicle classes allowed on the lane.
func (d *LaneDomain) GetAllowed(laneID string) ([]string, error) {
	return d.GetStringList(protocol.LaneAllowed, laneID)
}

// SetAllowed restricts the lane to the given vehicle classes.
func (d *LaneDomain) SetAllowed(laneID string, classes []string) error {
	return d.SetStringList(protocol.LaneAllowed, laneID, classes)
}

// SetDisallowed forbids the given vehicle classes on the lane.
func (d *LaneDomain) SetDisallowed(laneID string, classes []string) error {
	return d.SetStringList(protocol.LaneDisallowed, laneID, classes)
}

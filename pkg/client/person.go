package client

import (
	"github.com/kalifun/tracilink/pkg/protocol"
)

// PersonDomain extends the generic domain with journey-stage decoding.
type PersonDomain struct {
	*Domain
}

// GetStage returns one stage of a person's journey plan. Index 0 is the
// current stage, positive indices look ahead.
func (d *PersonDomain) GetStage(personID string, nextStageIndex int32) (protocol.Stage, error) {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeInteger)
	extra.WriteI32(nextStageIndex)
	ok, err := d.get(protocol.VarStage, personID, extra, protocol.TypeCompound)
	if err != nil || !ok {
		return protocol.Stage{}, err
	}
	return readStage(d.client.input)
}

// GetWaitingTime returns the person's accumulated waiting time.
func (d *PersonDomain) GetWaitingTime(personID string) (float64, error) {
	return d.GetDouble(protocol.VarWaitingTime, personID)
}

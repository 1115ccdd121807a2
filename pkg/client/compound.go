package client

import (
	"github.com/kalifun/tracilink/errors"
	"github.com/kalifun/tracilink/pkg/protocol"
)

// Compound payloads interleave a type tag before every component. These
// helpers consume one tagged component each and reject tag mismatches
// instead of guessing the component's size.

func expectTag(in *protocol.Buffer, want byte) error {
	tag, err := in.ReadU8()
	if err != nil {
		return err
	}
	if tag != want {
		return errors.Protocolf("expected component type 0x%02x but got 0x%02x", want, tag)
	}
	return nil
}

func readTaggedInt(in *protocol.Buffer) (int32, error) {
	if err := expectTag(in, protocol.TypeInteger); err != nil {
		return 0, err
	}
	return in.ReadI32()
}

func readTaggedDouble(in *protocol.Buffer) (float64, error) {
	if err := expectTag(in, protocol.TypeDouble); err != nil {
		return 0, err
	}
	return in.ReadF64()
}

func readTaggedString(in *protocol.Buffer) (string, error) {
	if err := expectTag(in, protocol.TypeString); err != nil {
		return "", err
	}
	return in.ReadString()
}

func readTaggedStringList(in *protocol.Buffer) ([]string, error) {
	if err := expectTag(in, protocol.TypeStringList); err != nil {
		return nil, err
	}
	return in.ReadStringList()
}

func readTaggedByte(in *protocol.Buffer) (byte, error) {
	if err := expectTag(in, protocol.TypeByte); err != nil {
		return 0, err
	}
	return in.ReadU8()
}

func readTaggedUByte(in *protocol.Buffer) (byte, error) {
	if err := expectTag(in, protocol.TypeUByte); err != nil {
		return 0, err
	}
	return in.ReadU8()
}

// readNestedCompoundCount consumes a tagged nested compound header and
// returns its component count. The outermost compound of a get response has
// its tag consumed by the response-header check, so its count is read bare.
func readNestedCompoundCount(in *protocol.Buffer) (int32, error) {
	if err := expectTag(in, protocol.TypeCompound); err != nil {
		return 0, err
	}
	return in.ReadI32()
}

// readStage decodes one journey stage: a compound of thirteen tagged
// components whose tag was already consumed.
func readStage(in *protocol.Buffer) (protocol.Stage, error) {
	var s protocol.Stage
	if _, err := in.ReadI32(); err != nil { // component count
		return s, err
	}
	var err error
	if s.Type, err = readTaggedInt(in); err != nil {
		return s, err
	}
	if s.VType, err = readTaggedString(in); err != nil {
		return s, err
	}
	if s.Line, err = readTaggedString(in); err != nil {
		return s, err
	}
	if s.DestStop, err = readTaggedString(in); err != nil {
		return s, err
	}
	if s.Edges, err = readTaggedStringList(in); err != nil {
		return s, err
	}
	if s.TravelTime, err = readTaggedDouble(in); err != nil {
		return s, err
	}
	if s.Cost, err = readTaggedDouble(in); err != nil {
		return s, err
	}
	if s.Length, err = readTaggedDouble(in); err != nil {
		return s, err
	}
	if s.Intended, err = readTaggedString(in); err != nil {
		return s, err
	}
	if s.Depart, err = readTaggedDouble(in); err != nil {
		return s, err
	}
	if s.DepartPos, err = readTaggedDouble(in); err != nil {
		return s, err
	}
	if s.ArrivalPos, err = readTaggedDouble(in); err != nil {
		return s, err
	}
	if s.Description, err = readTaggedString(in); err != nil {
		return s, err
	}
	return s, nil
}

package client

import (
	"github.com/kalifun/tracilink/errors"
	"github.com/kalifun/tracilink/pkg/protocol"
)

// Variable-subscription response command ids occupy one contiguous range;
// everything else pushed with a step response is a context subscription.
const (
	responseSubscribeVariableFirst byte = 0xe0
	responseSubscribeVariableLast  byte = 0xee
)

// commandSet derives all seven command bytes of a domain from its
// context-subscription base. The protocol spaces the commands of one
// domain 0x10 apart in a fixed order.
type commandSet struct {
	base byte
}

func (s commandSet) SubscribeContext() byte  { return s.base }
func (s commandSet) ResponseContext() byte   { return s.base + 0x10 }
func (s commandSet) Get() byte               { return s.base + 0x20 }
func (s commandSet) ResponseGet() byte       { return s.base + 0x30 }
func (s commandSet) Set() byte               { return s.base + 0x40 }
func (s commandSet) SubscribeVariable() byte { return s.base + 0x50 }
func (s commandSet) ResponseVariable() byte  { return s.base + 0x60 }

// Domain is one addressable object class of the simulation (vehicles,
// lanes, traffic lights, ...). It carries the class's command bytes and
// the subscription caches repopulated by every simulation step.
type Domain struct {
	name   string
	cmd    commandSet
	client *Client

	subscriptionResults        protocol.SubscriptionResults
	contextSubscriptionResults protocol.ContextSubscriptionResults
}

func newDomain(name string, base byte, client *Client) *Domain {
	return &Domain{
		name:                       name,
		cmd:                        commandSet{base: base},
		client:                     client,
		subscriptionResults:        make(protocol.SubscriptionResults),
		contextSubscriptionResults: make(protocol.ContextSubscriptionResults),
	}
}

// initDomains builds every domain handle and the response routing table.
func (c *Client) initDomains() {
	c.InductionLoop = &InductionLoopDomain{Domain: newDomain("inductionloop", 0x80, c)}
	c.MultiEntryExit = newDomain("multientryexit", 0x81, c)
	c.TrafficLight = &TrafficLightDomain{Domain: newDomain("trafficlight", 0x82, c)}
	c.Lane = &LaneDomain{Domain: newDomain("lane", 0x83, c)}
	c.Vehicle = &VehicleDomain{Domain: newDomain("vehicle", 0x84, c)}
	c.VehicleType = newDomain("vehicletype", 0x85, c)
	c.Route = newDomain("route", 0x86, c)
	c.POI = newDomain("poi", 0x87, c)
	c.Polygon = newDomain("polygon", 0x88, c)
	c.Junction = newDomain("junction", 0x89, c)
	c.Edge = newDomain("edge", 0x8a, c)
	c.Simulation = &SimulationDomain{Domain: newDomain("simulation", 0x8b, c)}
	c.GUI = newDomain("gui", 0x8c, c)
	c.LaneArea = newDomain("lanearea", 0x8d, c)
	c.Person = &PersonDomain{Domain: newDomain("person", 0x8e, c)}
	c.Rerouter = newDomain("rerouter", 0x08, c)
	c.RouteProbe = newDomain("routeprobe", 0x06, c)

	c.domains = make(map[byte]*Domain)
	for _, d := range c.allDomains() {
		c.domains[d.cmd.ResponseVariable()] = d
	}
}

func (c *Client) allDomains() []*Domain {
	return []*Domain{
		c.InductionLoop.Domain, c.MultiEntryExit, c.TrafficLight.Domain,
		c.Lane.Domain, c.Vehicle.Domain, c.VehicleType, c.Route, c.POI,
		c.Polygon, c.Junction, c.Edge, c.Simulation.Domain, c.GUI,
		c.LaneArea, c.Person.Domain, c.Rerouter, c.RouteProbe,
	}
}

// Name returns the domain's human-readable name.
func (d *Domain) Name() string { return d.name }

// GetCommand returns the domain's value-retrieval command byte, which also
// identifies the domain when it is observed by a context subscription.
func (d *Domain) GetCommand() byte { return d.cmd.Get() }

// ---------------------------------------------------------------------------
// Generic value retrieval
// ---------------------------------------------------------------------------

// get issues one retrieval command and validates the response down to the
// value-type tag. The boolean is false on a detached client.
func (d *Domain) get(varID byte, objID string, extra *protocol.Buffer, expectedType byte) (bool, error) {
	d.client.createCommand(d.cmd.Get(), varID, objID, extra)
	return d.client.processGet(d.cmd.Get(), expectedType)
}

// GetDouble retrieves a double-typed variable of one object.
func (d *Domain) GetDouble(varID byte, objID string) (float64, error) {
	ok, err := d.get(varID, objID, nil, protocol.TypeDouble)
	if err != nil || !ok {
		return 0, err
	}
	return d.client.input.ReadF64()
}

// GetInt retrieves an integer-typed variable of one object.
func (d *Domain) GetInt(varID byte, objID string) (int32, error) {
	ok, err := d.get(varID, objID, nil, protocol.TypeInteger)
	if err != nil || !ok {
		return 0, err
	}
	return d.client.input.ReadI32()
}

// GetString retrieves a string-typed variable of one object.
func (d *Domain) GetString(varID byte, objID string) (string, error) {
	ok, err := d.get(varID, objID, nil, protocol.TypeString)
	if err != nil || !ok {
		return "", err
	}
	return d.client.input.ReadString()
}

// GetStringList retrieves a string-list variable of one object.
func (d *Domain) GetStringList(varID byte, objID string) ([]string, error) {
	ok, err := d.get(varID, objID, nil, protocol.TypeStringList)
	if err != nil || !ok {
		return nil, err
	}
	return d.client.input.ReadStringList()
}

// GetDoubleList retrieves a double-list variable of one object.
func (d *Domain) GetDoubleList(varID byte, objID string) ([]float64, error) {
	ok, err := d.get(varID, objID, nil, protocol.TypeDoubleList)
	if err != nil || !ok {
		return nil, err
	}
	return d.client.input.ReadF64List()
}

// GetPosition retrieves a 2-D position variable of one object.
func (d *Domain) GetPosition(varID byte, objID string) (protocol.Position, error) {
	ok, err := d.get(varID, objID, nil, protocol.Position2D)
	if err != nil || !ok {
		return protocol.Position{}, err
	}
	v, err := protocol.ReadValue(d.client.input, protocol.Position2D)
	if err != nil {
		return protocol.Position{}, err
	}
	return v.(protocol.Position), nil
}

// GetPosition3D retrieves a 3-D position variable of one object.
func (d *Domain) GetPosition3D(varID byte, objID string) (protocol.Position, error) {
	ok, err := d.get(varID, objID, nil, protocol.Position3D)
	if err != nil || !ok {
		return protocol.Position{}, err
	}
	v, err := protocol.ReadValue(d.client.input, protocol.Position3D)
	if err != nil {
		return protocol.Position{}, err
	}
	return v.(protocol.Position), nil
}

// GetColor retrieves a colour variable of one object.
func (d *Domain) GetColor(varID byte, objID string) (protocol.Color, error) {
	ok, err := d.get(varID, objID, nil, protocol.TypeColor)
	if err != nil || !ok {
		return protocol.Color{}, err
	}
	v, err := protocol.ReadValue(d.client.input, protocol.TypeColor)
	if err != nil {
		return protocol.Color{}, err
	}
	return v.(protocol.Color), nil
}

// GetPolygon retrieves a polygon variable of one object.
func (d *Domain) GetPolygon(varID byte, objID string) (protocol.Polygon, error) {
	ok, err := d.get(varID, objID, nil, protocol.TypePolygon)
	if err != nil || !ok {
		return nil, err
	}
	return protocol.ReadPolygon(d.client.input)
}

// GetIDList returns the identifiers of every object in this domain.
func (d *Domain) GetIDList() ([]string, error) {
	return d.GetStringList(protocol.IDList, "")
}

// GetIDCount returns the number of objects in this domain.
func (d *Domain) GetIDCount() (int32, error) {
	return d.GetInt(protocol.IDCount, "")
}

// GetParameter retrieves a free-form string parameter of one object.
func (d *Domain) GetParameter(objID, key string) (string, error) {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(key)
	ok, err := d.get(protocol.VarParameter, objID, extra, protocol.TypeString)
	if err != nil || !ok {
		return "", err
	}
	return d.client.input.ReadString()
}

// ---------------------------------------------------------------------------
// Generic state changes
// ---------------------------------------------------------------------------

func (d *Domain) set(varID byte, objID string, extra *protocol.Buffer) error {
	d.client.createCommand(d.cmd.Set(), varID, objID, extra)
	_, err := d.client.processSet(d.cmd.Set())
	return err
}

// SetDouble changes a double-typed variable of one object.
func (d *Domain) SetDouble(varID byte, objID string, v float64) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeDouble)
	extra.WriteF64(v)
	return d.set(varID, objID, extra)
}

// SetInt changes an integer-typed variable of one object.
func (d *Domain) SetInt(varID byte, objID string, v int32) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeInteger)
	extra.WriteI32(v)
	return d.set(varID, objID, extra)
}

// SetString changes a string-typed variable of one object.
func (d *Domain) SetString(varID byte, objID string, v string) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(v)
	return d.set(varID, objID, extra)
}

// SetStringList changes a string-list variable of one object.
func (d *Domain) SetStringList(varID byte, objID string, v []string) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeStringList)
	extra.WriteStringList(v)
	return d.set(varID, objID, extra)
}

// SetColor changes a colour variable of one object.
func (d *Domain) SetColor(varID byte, objID string, v protocol.Color) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeColor)
	extra.WriteU8(v.R)
	extra.WriteU8(v.G)
	extra.WriteU8(v.B)
	extra.WriteU8(v.A)
	return d.set(varID, objID, extra)
}

// SetParameter changes a free-form string parameter of one object.
func (d *Domain) SetParameter(objID, key, value string) error {
	extra := protocol.NewBuffer()
	extra.WriteU8(protocol.TypeCompound)
	extra.WriteI32(2)
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(key)
	extra.WriteU8(protocol.TypeString)
	extra.WriteString(value)
	return d.set(protocol.VarParameter, objID, extra)
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

// Subscribe registers a variable subscription on one object of this domain.
// The results arrive with every step advance between begin and end and are
// readable through Results until the next step replaces them.
func (d *Domain) Subscribe(objID string, begin, end float64, vars []byte) error {
	return d.client.SubscribeObjectVariable(d.cmd.SubscribeVariable(), objID, begin, end, vars)
}

// SubscribeContext registers a context subscription anchored at one object
// of this domain, observing the variables of every object of the other
// domain within the given range.
func (d *Domain) SubscribeContext(objID string, other *Domain, rng float64, begin, end float64, vars []byte) error {
	return d.client.SubscribeObjectContext(d.cmd.SubscribeContext(), objID, begin, end, other.GetCommand(), rng, vars)
}

// Results returns the variable-subscription results of one object from the
// most recent step, or false when the step pushed nothing for it.
func (d *Domain) Results(objID string) (protocol.Results, bool) {
	r, ok := d.subscriptionResults[objID]
	return r, ok
}

// AllResults returns the full variable-subscription cache of the most
// recent step. The map is owned by the domain and valid until the next step.
func (d *Domain) AllResults() protocol.SubscriptionResults {
	return d.subscriptionResults
}

// ContextResults returns the context-subscription results anchored at one
// object from the most recent step. A subscription that matched no objects
// yields an empty, non-nil map.
func (d *Domain) ContextResults(objID string) (protocol.SubscriptionResults, bool) {
	r, ok := d.contextSubscriptionResults[objID]
	return r, ok
}

// AllContextResults returns the full context-subscription cache of the
// most recent step.
func (d *Domain) AllContextResults() protocol.ContextSubscriptionResults {
	return d.contextSubscriptionResults
}

func (d *Domain) clearCaches() {
	d.subscriptionResults = make(protocol.SubscriptionResults)
	d.contextSubscriptionResults = make(protocol.ContextSubscriptionResults)
}

// ---------------------------------------------------------------------------
// Step-response dispatch
// ---------------------------------------------------------------------------

// processSubscriptions clears every domain's caches and repopulates them
// from the subscription payloads appended to a step-advance response. The
// caches always reflect exactly one step, even when nothing was pushed.
func (c *Client) processSubscriptions(in *protocol.Buffer) error {
	for _, d := range c.allDomains() {
		d.clearCaches()
	}

	numSubs, err := in.ReadI32()
	if err != nil {
		return err
	}
	for i := int32(0); i < numSubs; i++ {
		cmdID, err := c.checkGetResponse(in, 0, -1, true)
		if err != nil {
			return err
		}
		if cmdID >= responseSubscribeVariableFirst && cmdID <= responseSubscribeVariableLast {
			err = c.readVariableSubscription(cmdID, in)
		} else {
			err = c.readContextSubscription(cmdID, in)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readVariableSubscription decodes one variable-subscription payload and
// stores it in the owning domain's cache. Payloads of domains this client
// does not know are fully parsed to keep the cursor aligned, then dropped.
func (c *Client) readVariableSubscription(cmdID byte, in *protocol.Buffer) error {
	objID, err := in.ReadString()
	if err != nil {
		return err
	}
	varCount, err := in.ReadU8()
	if err != nil {
		return err
	}
	results, err := c.readVariables(in, varCount)
	if err != nil {
		return err
	}
	d, ok := c.domains[cmdID]
	if !ok {
		c.logger.WithField("command", cmdID).Warn("Dropping subscription result for unknown domain")
		return nil
	}
	d.subscriptionResults[objID] = results
	return nil
}

// readContextSubscription decodes one context-subscription payload. The
// domain owning the cache is the anchor's domain, recovered from the
// response command id; the observed domain byte inside the payload only
// described what was subscribed and is skipped.
func (c *Client) readContextSubscription(cmdID byte, in *protocol.Buffer) error {
	objID, err := in.ReadString()
	if err != nil {
		return err
	}
	if _, err := in.ReadU8(); err != nil { // observed-domain echo
		return err
	}
	varCount, err := in.ReadU8()
	if err != nil {
		return err
	}
	numObjects, err := in.ReadI32()
	if err != nil {
		return err
	}

	results := make(protocol.SubscriptionResults)
	for i := int32(0); i < numObjects; i++ {
		member, err := in.ReadString()
		if err != nil {
			return err
		}
		vars, err := c.readVariables(in, varCount)
		if err != nil {
			return err
		}
		results[member] = vars
	}

	d, ok := c.domains[cmdID+0x50]
	if !ok {
		c.logger.WithField("command", cmdID).Warn("Dropping context result for unknown domain")
		return nil
	}
	d.contextSubscriptionResults[objID] = results
	return nil
}

// readVariables decodes count (variable id, status, typed value) triples.
// A non-OK per-variable status aborts the whole step: the remaining bytes
// cannot be located once one value is missing.
func (c *Client) readVariables(in *protocol.Buffer, count byte) (protocol.Results, error) {
	results := make(protocol.Results, count)
	for i := byte(0); i < count; i++ {
		varID, err := in.ReadU8()
		if err != nil {
			return nil, err
		}
		status, err := in.ReadU8()
		if err != nil {
			return nil, err
		}
		if status != protocol.RTypeOK {
			return nil, errors.Protocolf("subscription variable 0x%02x returned status 0x%02x", varID, status)
		}
		typeTag, err := in.ReadU8()
		if err != nil {
			return nil, err
		}
		v, err := protocol.ReadValue(in, typeTag)
		if err != nil {
			return nil, err
		}
		results[varID] = v
	}
	return results, nil
}

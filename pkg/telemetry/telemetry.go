// Package telemetry turns per-step subscription results into events and
// fans them out to in-process consumers, such as the MQTT bridge.
package telemetry

import (
	"fmt"

	"github.com/kalifun/tracilink/pkg/protocol"
)

// StepEvent is the published form of one object's subscription results
// from one simulation step.
type StepEvent struct {
	Time      float64                `json:"time"`
	Domain    string                 `json:"domain"`
	Object    string                 `json:"object"`
	Variables map[string]interface{} `json:"variables"`
}

// Topic returns the event's routing topic, one segment per dimension.
func (e *StepEvent) Topic() string {
	return fmt.Sprintf("%s/%s", e.Domain, e.Object)
}

// EventsFromResults converts one domain's variable-subscription cache into
// step events, one per subscribed object.
func EventsFromResults(time float64, domain string, results protocol.SubscriptionResults) []*StepEvent {
	events := make([]*StepEvent, 0, len(results))
	for objID, vars := range results {
		events = append(events, &StepEvent{
			Time:      time,
			Domain:    domain,
			Object:    objID,
			Variables: flattenResults(vars),
		})
	}
	return events
}

func flattenResults(results protocol.Results) map[string]interface{} {
	out := make(map[string]interface{}, len(results))
	for varID, v := range results {
		out[fmt.Sprintf("0x%02x", varID)] = flattenValue(v)
	}
	return out
}

// flattenValue maps wire values onto plain JSON-encodable Go values.
func flattenValue(v protocol.Value) interface{} {
	switch val := v.(type) {
	case protocol.Int:
		return int32(val)
	case protocol.Double:
		return float64(val)
	case protocol.String:
		return string(val)
	case protocol.StringList:
		return []string(val)
	case protocol.DoubleList:
		return []float64(val)
	case protocol.Color:
		return map[string]byte{"r": val.R, "g": val.G, "b": val.B, "a": val.A}
	case protocol.Position:
		m := map[string]float64{"x": val.X, "y": val.Y}
		if val.Is3D() {
			m["z"] = val.Z
		}
		return m
	default:
		return fmt.Sprintf("%v", v)
	}
}

package elm327

import (
	"strings"

	"github.com/jd3nn1s/obdlink/telemetry"
)

// PID is one Mode 01 parameter: its two hex digit code, how to turn the
// response bytes A and B into an integer and which record field receives it.
type PID struct {
	Code   string
	Name   string
	Decode func(a, b int) int
	set    func(r *telemetry.Record, v int)
}

// Apply decodes a and b and writes the result into r.
func (p PID) Apply(r *telemetry.Record, a, b int) int {
	v := p.Decode(a, b)
	p.set(r, v)
	return v
}

func word(a, b int) int {
	return (a * 256) + b
}

func percent(a, _ int) int {
	return a * 100 / 255
}

func offset40(a, _ int) int {
	return a - 40
}

func torque(a, _ int) int {
	return a - 125
}

func raw(a, _ int) int {
	return a
}

var pids = []PID{
	{Code: "0C", Name: "rpm", Decode: func(a, b int) int { return word(a, b) / 4 },
		set: func(r *telemetry.Record, v int) { r.RPM = v }},
	{Code: "0D", Name: "speed", Decode: raw,
		set: func(r *telemetry.Record, v int) { r.Speed = v }},
	{Code: "05", Name: "coolant_temp", Decode: offset40,
		set: func(r *telemetry.Record, v int) { r.CoolantTemp = v }},
	{Code: "0F", Name: "intake_temp", Decode: offset40,
		set: func(r *telemetry.Record, v int) { r.IntakeTemp = v }},
	{Code: "11", Name: "throttle", Decode: percent,
		set: func(r *telemetry.Record, v int) { r.Throttle = v }},
	{Code: "04", Name: "engine_load", Decode: percent,
		set: func(r *telemetry.Record, v int) { r.EngineLoad = v }},
	{Code: "0B", Name: "manifold_pressure", Decode: raw,
		set: func(r *telemetry.Record, v int) { r.ManifoldPressure = v }},
	{Code: "2F", Name: "fuel_level", Decode: percent,
		set: func(r *telemetry.Record, v int) { r.FuelLevel = v }},
	{Code: "0E", Name: "timing_advance", Decode: func(a, _ int) int { return a/2 - 64 },
		set: func(r *telemetry.Record, v int) { r.TimingAdvance = v }},
	// gear sits in the low nibble, some ECUs set flags in the high one
	{Code: "A4", Name: "actual_gear", Decode: func(a, _ int) int { return a & 0x0F },
		set: func(r *telemetry.Record, v int) { r.ActualGear = v }},
	// millivolts / 100 gives V x10
	{Code: "42", Name: "battery_voltage", Decode: func(a, b int) int { return word(a, b) / 100 },
		set: func(r *telemetry.Record, v int) { r.BatteryVoltage = v }},
	{Code: "61", Name: "demanded_torque", Decode: torque,
		set: func(r *telemetry.Record, v int) { r.DemandedTorque = v }},
	{Code: "62", Name: "actual_torque", Decode: torque,
		set: func(r *telemetry.Record, v int) { r.ActualTorque = v }},
	// 0.05 L/h per bit, stored as L/h x10
	{Code: "5E", Name: "fuel_rate", Decode: func(a, b int) int { return word(a, b) / 2 },
		set: func(r *telemetry.Record, v int) { r.FuelRate = v }},
}

var registry map[string]PID

func init() {
	registry = make(map[string]PID, len(pids))
	for _, p := range pids {
		registry[p.Code] = p
	}
}

// Lookup finds a PID by its two hex digit code.
func Lookup(code string) (PID, bool) {
	p, ok := registry[strings.ToUpper(code)]
	return p, ok
}

// RPM and speed come first so the values that change fastest are refreshed
// most promptly after a reconnect.
var pollOrder = []string{
	"0C", "0D", "11", "04", "A4", "61", "62",
	"05", "0F", "0B", "2F", "0E", "42", "5E",
}

// PollOrder returns the codes requested by the poller, in order.
func PollOrder() []string {
	ret := make([]string, len(pollOrder))
	copy(ret, pollOrder)
	return ret
}

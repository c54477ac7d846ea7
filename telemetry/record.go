package telemetry

import (
	log "github.com/sirupsen/logrus"
)

// Record is the last known value of every polled PID. Fields for PIDs that
// never answered stay zero.
type Record struct {
	RPM              int // rev/min
	Speed            int // km/h
	CoolantTemp      int // °C
	IntakeTemp       int // °C
	Throttle         int // %
	EngineLoad       int // %
	ManifoldPressure int // kPa absolute
	FuelLevel        int // %
	TimingAdvance    int // degrees before TDC
	ActualGear       int // 0 is neutral
	BatteryVoltage   int // V x10
	DemandedTorque   int // %
	ActualTorque     int // %
	FuelRate         int // L/h x10

	// milliseconds since the sender booted, used for ordering only
	Timestamp uint32
}

func (r Record) Fields() log.Fields {
	return log.Fields{
		"rpm":               r.RPM,
		"speed":             r.Speed,
		"coolant_temp":      r.CoolantTemp,
		"intake_temp":       r.IntakeTemp,
		"throttle":          r.Throttle,
		"engine_load":       r.EngineLoad,
		"manifold_pressure": r.ManifoldPressure,
		"fuel_level":        r.FuelLevel,
		"timing_advance":    r.TimingAdvance,
		"actual_gear":       r.ActualGear,
		"battery_voltage":   r.BatteryVoltage,
		"demanded_torque":   r.DemandedTorque,
		"actual_torque":     r.ActualTorque,
		"fuel_rate":         r.FuelRate,
		"timestamp":         r.Timestamp,
	}
}

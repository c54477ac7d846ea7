package telemetry

import (
	"fmt"
)

const (
	atmosphericKPa = 100
	slipThreshold  = 10
)

// Payload is the JSON document relayed over MQTT and stored by the bridge.
type Payload struct {
	RPM              int    `json:"rpm"`
	Speed            int    `json:"speed"`
	CoolantTemp      int    `json:"coolant_temp"`
	IntakeTemp       int    `json:"intake_temp"`
	Throttle         int    `json:"throttle"`
	EngineLoad       int    `json:"engine_load"`
	ManifoldPressure int    `json:"manifold_pressure"`
	FuelLevel        int    `json:"fuel_level"`
	TimingAdvance    int    `json:"timing_advance"`
	BoostPressure    int    `json:"boost_pressure"`
	ActualGear       int    `json:"actual_gear"`
	BatteryVoltage   int    `json:"battery_voltage"`
	DemandedTorque   int    `json:"demanded_torque"`
	ActualTorque     int    `json:"actual_torque"`
	FuelRate         int    `json:"fuel_rate"`
	TorqueSlip       int    `json:"torque_slip"`
	Timestamp        uint32 `json:"timestamp"`
	Stale            bool   `json:"stale"`
}

// NewPayload derives boost (gauge pressure over one atmosphere) and torque slip
// (demanded minus actual) from r.
func NewPayload(r Record, stale bool) Payload {
	return Payload{
		RPM:              r.RPM,
		Speed:            r.Speed,
		CoolantTemp:      r.CoolantTemp,
		IntakeTemp:       r.IntakeTemp,
		Throttle:         r.Throttle,
		EngineLoad:       r.EngineLoad,
		ManifoldPressure: r.ManifoldPressure,
		FuelLevel:        r.FuelLevel,
		TimingAdvance:    r.TimingAdvance,
		BoostPressure:    r.ManifoldPressure - atmosphericKPa,
		ActualGear:       r.ActualGear,
		BatteryVoltage:   r.BatteryVoltage,
		DemandedTorque:   r.DemandedTorque,
		ActualTorque:     r.ActualTorque,
		FuelRate:         r.FuelRate,
		TorqueSlip:       r.DemandedTorque - r.ActualTorque,
		Timestamp:        r.Timestamp,
		Stale:            stale,
	}
}

func (p Payload) GearLabel() string {
	if p.ActualGear > 0 {
		return fmt.Sprintf("G%d", p.ActualGear)
	}
	return "N"
}

func (p Payload) Slipping() bool {
	return p.TorqueSlip > slipThreshold
}

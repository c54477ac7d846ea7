package obdlink

import (
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/pkg/errors"
)

// CANForwarder mirrors the values a dash display shows, sending each only
// when it changes.
type CANForwarder struct {
	dashBus *dashBusRetryable
}

func (fwd *CANForwarder) Forward(newTelemetry *telemetry.Record, prevTelemetry *telemetry.Record) error {
	bus := fwd.dashBus.DashBus()
	if bus == nil {
		return errors.New("dash canbus is not initialized")
	}
	if prevTelemetry.Speed != newTelemetry.Speed {
		if err := bus.SendSpeed(newTelemetry.Speed); err != nil {
			return errors.Wrapf(err, "unable to send speed to CAN bus")
		}
	}
	if prevTelemetry.RPM != newTelemetry.RPM {
		if err := bus.SendRPM(newTelemetry.RPM); err != nil {
			return errors.Wrapf(err, "unable to send rpm to CAN bus")
		}
	}
	if prevTelemetry.ActualGear != newTelemetry.ActualGear {
		if err := bus.SendGear(newTelemetry.ActualGear); err != nil {
			return errors.Wrapf(err, "unable to send gear to CAN bus")
		}
	}
	if prevTelemetry.CoolantTemp != newTelemetry.CoolantTemp {
		if err := bus.SendCoolantTemp(newTelemetry.CoolantTemp); err != nil {
			return errors.Wrapf(err, "unable to send coolant temp to CAN bus")
		}
	}
	return nil
}

package obdlink

import (
	"context"

	"github.com/jd3nn1s/obdlink/elm327"
	"github.com/jd3nn1s/obdlink/telemetry"
)

type Adapter interface {
	Close() error
	Initialize(context.Context) error
	Request(code string) error
	Seed(telemetry.Record)
	Start(context.Context, elm327.Callbacks) error
}

type DashBus interface {
	Close() error
	Start(context.Context) error
	SendSpeed(int) error
	SendRPM(int) error
	SendGear(int) error
	SendCoolantTemp(int) error
}

type Forwarder interface {
	Forward(newTelemetry *telemetry.Record, prevTelemetry *telemetry.Record) error
}

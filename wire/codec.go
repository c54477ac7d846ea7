package wire

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/pkg/errors"
)

// FrameSize is the length of an encoded record: 14 int16 fields followed by
// a uint32 timestamp, little-endian with no padding.
const FrameSize = 32

var ErrFrameLength = errors.New("wire frame has the wrong length")

// frame is the on-air layout. Field order is the wire order.
type frame struct {
	RPM              int16
	Speed            int16
	CoolantTemp      int16
	IntakeTemp       int16
	Throttle         int16
	EngineLoad       int16
	ManifoldPressure int16
	FuelLevel        int16
	TimingAdvance    int16
	ActualGear       int16
	BatteryVoltage   int16
	DemandedTorque   int16
	ActualTorque     int16
	FuelRate         int16
	Timestamp        uint32
}

// clamp saturates v to the int16 range instead of letting it wrap.
func clamp(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func Encode(r telemetry.Record) []byte {
	f := frame{
		RPM:              clamp(r.RPM),
		Speed:            clamp(r.Speed),
		CoolantTemp:      clamp(r.CoolantTemp),
		IntakeTemp:       clamp(r.IntakeTemp),
		Throttle:         clamp(r.Throttle),
		EngineLoad:       clamp(r.EngineLoad),
		ManifoldPressure: clamp(r.ManifoldPressure),
		FuelLevel:        clamp(r.FuelLevel),
		TimingAdvance:    clamp(r.TimingAdvance),
		ActualGear:       clamp(r.ActualGear),
		BatteryVoltage:   clamp(r.BatteryVoltage),
		DemandedTorque:   clamp(r.DemandedTorque),
		ActualTorque:     clamp(r.ActualTorque),
		FuelRate:         clamp(r.FuelRate),
		Timestamp:        r.Timestamp,
	}
	buf := bytes.NewBuffer(make([]byte, 0, FrameSize))
	// writes to a bytes.Buffer of fixed size values can't fail
	_ = binary.Write(buf, binary.LittleEndian, &f)
	return buf.Bytes()
}

func Decode(b []byte) (telemetry.Record, error) {
	if len(b) != FrameSize {
		return telemetry.Record{}, errors.Wrapf(ErrFrameLength, "got %d bytes, want %d", len(b), FrameSize)
	}
	f := frame{}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &f); err != nil {
		return telemetry.Record{}, errors.Wrap(err, "unable to read wire frame")
	}
	return telemetry.Record{
		RPM:              int(f.RPM),
		Speed:            int(f.Speed),
		CoolantTemp:      int(f.CoolantTemp),
		IntakeTemp:       int(f.IntakeTemp),
		Throttle:         int(f.Throttle),
		EngineLoad:       int(f.EngineLoad),
		ManifoldPressure: int(f.ManifoldPressure),
		FuelLevel:        int(f.FuelLevel),
		TimingAdvance:    int(f.TimingAdvance),
		ActualGear:       int(f.ActualGear),
		BatteryVoltage:   int(f.BatteryVoltage),
		DemandedTorque:   int(f.DemandedTorque),
		ActualTorque:     int(f.ActualTorque),
		FuelRate:         int(f.FuelRate),
		Timestamp:        f.Timestamp,
	}, nil
}

// DecodeInto replaces *dst with the decoded frame. On error dst is left
// untouched.
func DecodeInto(dst *telemetry.Record, b []byte) error {
	r, err := Decode(b)
	if err != nil {
		return err
	}
	*dst = r
	return nil
}

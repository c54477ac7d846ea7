package obdlink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jd3nn1s/obdlink/config"
	"github.com/jd3nn1s/obdlink/elm327"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestCheckChannels(t *testing.T) {
	s := NewSender(config.Default().Sender)
	ctx := context.Background()

	r := telemetry.Record{RPM: 1674, Speed: 60}
	s.elmChan <- r
	assert.True(t, s.CheckChannels(ctx))
	assert.Equal(t, r, s.Telemetry)

	// send the same data
	s.elmChan <- r
	prevTelem := s.Telemetry
	assert.False(t, s.CheckChannels(ctx))
	assert.Equal(t, prevTelem, s.Telemetry)

	// a stamped record isn't a change on its own
	s.TelemetryUpdate()
	s.elmChan <- r
	assert.False(t, s.CheckChannels(ctx))

	s.elmChan <- telemetry.Record{RPM: 1700, Speed: 61}
	assert.True(t, s.CheckChannels(ctx))
	assert.Equal(t, 1700, s.Telemetry.RPM)
	assert.Equal(t, 61, s.Telemetry.Speed)
}

func TestCheckChannelsCancelled(t *testing.T) {
	s := NewSender(config.Default().Sender)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.CheckChannels(ctx))
}

func TestTelemetryUpdate(t *testing.T) {
	s := NewSender(config.Default().Sender)
	boot := time.Unix(100, 0)
	s.bootTime = boot
	s.now = func() time.Time { return boot.Add(1500 * time.Millisecond) }

	fwder := forwarderStub{}
	s.AddForwarder(&fwder)

	s.Telemetry = telemetry.Record{Speed: 10}
	s.TelemetryUpdate()
	assert.Equal(t, uint32(1500), fwder.newTelemetry.Timestamp)
	assert.Equal(t, 10, fwder.newTelemetry.Speed)
	assert.Equal(t, telemetry.Record{}, fwder.prevTelemetry)

	s.now = func() time.Time { return boot.Add(2 * time.Second) }
	s.Telemetry.Speed = 20
	s.TelemetryUpdate()
	assert.Equal(t, uint32(2000), fwder.newTelemetry.Timestamp)
	assert.Equal(t, 10, fwder.prevTelemetry.Speed)
	assert.Equal(t, uint32(1500), fwder.prevTelemetry.Timestamp)
	assert.Equal(t, 2, fwder.calls)
}

func TestSendLatest(t *testing.T) {
	ch := make(chan telemetry.Record, 1)
	sendLatest(ch, telemetry.Record{RPM: 1})
	sendLatest(ch, telemetry.Record{RPM: 2})
	assert.Equal(t, 2, (<-ch).RPM)
}

func TestAdapterRetryable(t *testing.T) {
	defer noDelays()()
	stub := createAdapterStub()
	origConnect := adapterConnect
	adapterConnect = func(config.Sender) (Adapter, error) {
		return stub, nil
	}
	defer func() {
		adapterConnect = origConnect
	}()

	cfg := config.Default().Sender
	cfg.PollDelayMS = 1
	cfg.ResponseDelayMS = 0
	s := NewSender(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		runAdapter(ctx, cfg, s.elmChan)
		wg.Done()
	}()

	<-stub.startChan
	assert.True(t, stub.initialized())
	assert.Eventually(t, func() bool {
		return len(stub.requested()) >= len(elm327.PollOrder())
	}, time.Second, time.Millisecond)
	assert.Equal(t, elm327.PollOrder(), stub.requested()[:len(elm327.PollOrder())])

	stub.fnChan <- func() {
		stub.callbacks.Measurement(elm327.PID{Code: "0D"}, telemetry.Record{Speed: 77})
	}
	assert.True(t, s.CheckChannels(ctx))
	assert.Equal(t, 77, s.Telemetry.Speed)

	cancel()
	wg.Wait()
}

func TestTestMode(t *testing.T) {
	s := NewSender(config.Default().Sender)
	s.SetTestMode(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	assert.True(t, s.CheckChannels(ctx))
	assert.Equal(t, 800, s.Telemetry.RPM, "rpm is polled first")
}

func TestSimulatorResponses(t *testing.T) {
	sim := newSimulator()
	sim.speed = 60
	p := elm327.NewParser()
	p.Strict = true
	for _, code := range elm327.PollOrder() {
		resp := sim.response(code)
		for i := 0; i < len(resp); i++ {
			p.Feed(resp[i])
		}
	}
	r := p.Record()
	assert.Equal(t, 800, r.RPM)
	assert.Equal(t, 60, r.Speed)
	assert.Equal(t, 20, r.CoolantTemp)
	assert.Equal(t, 25, r.IntakeTemp)
	assert.Equal(t, 10, r.TimingAdvance)
	assert.Equal(t, 3, r.ActualGear)
	assert.Equal(t, 141, r.BatteryVoltage)
	assert.Equal(t, 0, r.FuelRate, "fuel rate answers NO DATA")
}

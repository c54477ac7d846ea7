package obdlink

import (
	"context"
	"sync"

	"github.com/jd3nn1s/obdlink/elm327"
	"github.com/jd3nn1s/obdlink/telemetry"
)

type sensorStub struct {
	startChan chan struct{}
	errChan   chan error
	fnChan    chan func()
}

type adapterStub struct {
	sensorStub
	callbacks elm327.Callbacks

	mu       sync.Mutex
	inited   bool
	seeded   telemetry.Record
	requests []string
}

type dashBusStub struct {
	sensorStub
	speed          int
	speedCallCount int
	rpm            int
	rpmCallCount   int
	gear           int
	coolant        int
}

func createSensorStub() *sensorStub {
	ret := sensorStub{
		startChan: make(chan struct{}, 1),
		errChan:   make(chan error),
		fnChan:    make(chan func()),
	}
	return &ret
}

func (s *sensorStub) Close() error {
	return nil
}

func (s *sensorStub) start(ctx context.Context) error {
	select {
	case s.startChan <- struct{}{}:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.errChan:
			return err
		case fn := <-s.fnChan:
			fn()
		}
	}
}

func createAdapterStub() *adapterStub {
	return &adapterStub{
		sensorStub: *createSensorStub(),
	}
}

func (a *adapterStub) Initialize(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inited = true
	return nil
}

func (a *adapterStub) Request(code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, code)
	return nil
}

func (a *adapterStub) Seed(r telemetry.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeded = r
}

func (a *adapterStub) Start(ctx context.Context, callbacks elm327.Callbacks) error {
	a.callbacks = callbacks
	return a.sensorStub.start(ctx)
}

func (a *adapterStub) initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inited
}

func (a *adapterStub) requested() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ret := make([]string, len(a.requests))
	copy(ret, a.requests)
	return ret
}

func createDashBusStub() *dashBusStub {
	return &dashBusStub{
		sensorStub: *createSensorStub(),
	}
}

func (c *dashBusStub) Start(ctx context.Context) error {
	return c.sensorStub.start(ctx)
}

func (c *dashBusStub) SendSpeed(speed int) error {
	c.speedCallCount++
	c.speed = speed
	return nil
}

func (c *dashBusStub) SendRPM(rpm int) error {
	c.rpmCallCount++
	c.rpm = rpm
	return nil
}

func (c *dashBusStub) SendGear(gear int) error {
	c.gear = gear
	return nil
}

func (c *dashBusStub) SendCoolantTemp(temp int) error {
	c.coolant = temp
	return nil
}

type forwarderStub struct {
	newTelemetry  telemetry.Record
	prevTelemetry telemetry.Record
	calls         int
}

func (fwd *forwarderStub) Forward(newTelemetry *telemetry.Record, prevTelemetry *telemetry.Record) error {
	fwd.newTelemetry = *newTelemetry
	fwd.prevTelemetry = *prevTelemetry
	fwd.calls++
	return nil
}

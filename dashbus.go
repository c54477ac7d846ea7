package obdlink

import (
	"context"
	"sync"

	"github.com/jd3nn1s/obdlink/dashcan"
	log "github.com/sirupsen/logrus"
)

type dashBusRetryable struct {
	iface string

	mu sync.Mutex
	c  DashBus
}

// to allow testing
var dashConnect = func(iface string) (DashBus, error) {
	return dashcan.Connect(iface)
}

func (bus *dashBusRetryable) Name() string {
	return "dashcan"
}

func (bus *dashBusRetryable) Open() error {
	c, err := dashConnect(bus.iface)
	if err != nil {
		return err
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.c = c
	return nil
}

func (bus *dashBusRetryable) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.c == nil {
		return nil
	}
	err := bus.c.Close()
	bus.c = nil
	return err
}

func (bus *dashBusRetryable) Start(ctx context.Context) error {
	c := bus.DashBus()
	if c == nil {
		return dashcan.ErrNotConnected
	}
	return c.Start(ctx)
}

// DashBus returns the open connection, nil while reconnecting.
func (bus *dashBusRetryable) DashBus() DashBus {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.c
}

// NewCANForwarder keeps a dash CAN interface open in the background and
// returns a forwarder that writes to it.
func NewCANForwarder(ctx context.Context, iface string) *CANForwarder {
	bus := &dashBusRetryable{iface: iface}
	go func() {
		if err := retry(ctx, bus); err != nil {
			log.Errorf("dashcan done: %v", err)
		}
	}()
	return &CANForwarder{dashBus: bus}
}

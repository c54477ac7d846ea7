package obdlink

import (
	"context"
	"time"

	"github.com/jd3nn1s/obdlink/config"
	"github.com/jd3nn1s/obdlink/elm327"
	"github.com/jd3nn1s/obdlink/telemetry"
	log "github.com/sirupsen/logrus"
)

type adapterRetryable struct {
	c        Adapter
	cfg      config.Sender
	sendChan chan telemetry.Record

	// survives reconnects so fields don't fall back to zero
	last telemetry.Record
}

// to allow testing
var adapterConnect = func(cfg config.Sender) (Adapter, error) {
	c, err := elm327.Connect(cfg.SerialPort, cfg.Baud)
	if err != nil {
		return nil, err
	}
	c.SetStrict(cfg.StrictHex)
	return c, nil
}

func (e *adapterRetryable) Name() string {
	return "elm327"
}

func (e *adapterRetryable) Open() error {
	c, err := adapterConnect(e.cfg)
	e.c = c
	return err
}

func (e *adapterRetryable) Close() error {
	if e.c == nil {
		return nil
	}
	err := e.c.Close()
	e.c = nil
	return err
}

// Start initializes the adapter then reads responses while polling every
// PID in turn. It returns when either side fails.
func (e *adapterRetryable) Start(ctx context.Context) error {
	e.c.Seed(e.last)
	if err := e.c.Initialize(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- e.poll(ctx)
		cancel()
	}()

	err := e.c.Start(ctx, elm327.Callbacks{
		Measurement: func(pid elm327.PID, r telemetry.Record) {
			e.last = r
			sendLatest(e.sendChan, r)
		},
		Discarded: func(outcome elm327.Outcome, response string) {
			log.WithField("outcome", outcome).
				WithField("response", response).
				Debug("discarded adapter response")
		},
	})
	cancel()
	if perr := <-pollErr; perr != nil && perr != context.Canceled {
		return perr
	}
	return err
}

// poll requests each PID, waiting for the response and then the poll delay
// before moving on.
func (e *adapterRetryable) poll(ctx context.Context) error {
	order := elm327.PollOrder()
	wait := e.cfg.ResponseDelay() + e.cfg.PollDelay()
	for i := 0; ; i = (i + 1) % len(order) {
		if err := e.c.Request(order[i]); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func runAdapter(ctx context.Context, cfg config.Sender, sendChan chan telemetry.Record) {
	err := retry(ctx, &adapterRetryable{
		cfg:      cfg,
		sendChan: sendChan,
	})
	if err != nil {
		log.Errorf("elm327 done: %v", err)
	}
}

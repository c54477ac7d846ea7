package obdlink

import (
	"context"
	"time"

	"github.com/jd3nn1s/obdlink/config"
	"github.com/jd3nn1s/obdlink/telemetry"
	log "github.com/sirupsen/logrus"
)

const channelBufferSize = 1

// Sender collects records from the ELM327 adapter and hands every change to
// its forwarders.
type Sender struct {
	Telemetry     telemetry.Record
	prevTelemetry telemetry.Record

	cfg        config.Sender
	elmChan    chan telemetry.Record
	forwarders []Forwarder
	testMode   bool

	bootTime time.Time
	now      func() time.Time
}

func NewSender(cfg config.Sender) *Sender {
	return &Sender{
		cfg:      cfg,
		elmChan:  make(chan telemetry.Record, channelBufferSize),
		bootTime: time.Now(),
		now:      time.Now,
	}
}

func (s *Sender) SetTestMode(testMode bool) {
	s.testMode = testMode
}

func (s *Sender) AddForwarder(fwd Forwarder) {
	s.forwarders = append(s.forwarders, fwd)
}

func (s *Sender) Start(ctx context.Context) {
	if s.testMode {
		log.Info("running in test mode")
		s.runTestMode(ctx)
		return
	}
	go runAdapter(ctx, s.cfg, s.elmChan)
}

// CheckChannels waits for the next record from the adapter and adopts it.
// It reports whether anything other than the timestamp changed.
func (s *Sender) CheckChannels(ctx context.Context) (changed bool) {
	var newTelemetry telemetry.Record
	select {
	case newTelemetry = <-s.elmChan:
	case <-ctx.Done():
		return false
	}
	newTelemetry.Timestamp = s.Telemetry.Timestamp
	if s.Telemetry != newTelemetry {
		s.Telemetry = newTelemetry
		return true
	}
	return false
}

// TelemetryUpdate stamps the current record with the time since boot and
// forwards it.
func (s *Sender) TelemetryUpdate() {
	s.Telemetry.Timestamp = uint32(s.now().Sub(s.bootTime).Milliseconds())
	for _, fwd := range s.forwarders {
		if err := fwd.Forward(&s.Telemetry, &s.prevTelemetry); err != nil {
			log.WithField("err", err).Warn("unable to forward telemetry")
		}
	}
	s.prevTelemetry = s.Telemetry
}

// sendLatest replaces whatever is queued on ch with r, so a slow reader
// always gets the newest record.
func sendLatest(ch chan telemetry.Record, r telemetry.Record) {
	select {
	case ch <- r:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- r:
	default:
	}
}

package forwarder

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jd3nn1s/obdlink/config"
	"github.com/jd3nn1s/obdlink/metrics"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/jd3nn1s/obdlink/wire"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const maxDatagramSize = wire.SealedSize

// UDPForwarder sends the latest record as a wire frame at most once per
// refresh interval. Records arriving faster than that replace each other.
type UDPForwarder struct {
	Config config.Link

	conn    net.Conn
	fwdChan chan *telemetry.Record
	mu      sync.Mutex
}

func NewUDPForwarder(cfg config.Link) (*UDPForwarder, error) {
	udp := &UDPForwarder{
		Config:  cfg,
		fwdChan: make(chan *telemetry.Record, 1),
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Forward(newTelemetry *telemetry.Record, prevTelemetry *telemetry.Record) error {
	telemCopy := *newTelemetry
	udp.mu.Lock()
	defer udp.mu.Unlock()
	// drop a queued record that hasn't gone out yet, the newer one wins
	select {
	case <-udp.fwdChan:
	default:
	}
	select {
	// copy telemetry as we're processing it on another go-routine
	case udp.fwdChan <- &telemCopy:
	default:
	}
	return nil
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	limiter := time.NewTicker(udp.Config.DataRefresh())
	defer limiter.Stop()
	for {
		select {
		case t := <-udp.fwdChan:
			if err := udp.forward(t); err != nil {
				log.WithField("err", err).Error("unable to forward telemetry to receiver")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(telem *telemetry.Record) error {
	frame := wire.Encode(*telem)
	if udp.Config.Framed {
		frame = wire.Seal(frame)
	}
	if _, err := udp.conn.Write(frame); err != nil {
		return errors.Wrap(err, "unable to write telemetry udp packet")
	}
	metrics.FramesSent.Inc()
	log.WithField("timestamp", telem.Timestamp).Debug("forwarded telemetry frame")
	return nil
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxDatagramSize * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrapf(err, "unable to dial %s:%d", udp.Config.Server, udp.Config.Port)
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}

package receiver

import (
	"context"
	"net"
	"time"

	"github.com/jd3nn1s/obdlink/metrics"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/jd3nn1s/obdlink/wire"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const pollInterval = 500 * time.Millisecond

// Listener receives telemetry datagrams, publishing each valid frame to the
// store and marking the monitor.
type Listener struct {
	store   *Store
	monitor *Monitor
	framed  bool

	conn net.PacketConn
	now  func() time.Time
}

func NewListener(addr string, framed bool, store *Store, monitor *Monitor) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to listen on %s", addr)
	}
	return &Listener{
		store:   store,
		monitor: monitor,
		framed:  framed,
		conn:    conn,
		now:     time.Now,
	}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// HandleDatagram decodes b and publishes it. A rejected datagram leaves the
// store and monitor as they were.
func (l *Listener) HandleDatagram(b []byte, at time.Time) error {
	frame := b
	if l.framed {
		var err error
		if frame, err = wire.Open(b); err != nil {
			return err
		}
	}
	r := telemetry.Record{}
	if err := wire.DecodeInto(&r, frame); err != nil {
		return err
	}
	l.store.Publish(r, at)
	l.monitor.MarkReceived(at)
	return nil
}

func rejectReason(err error) string {
	switch errors.Cause(err) {
	case wire.ErrFrameLength:
		return "length"
	case wire.ErrChecksum:
		return "checksum"
	case wire.ErrVersion:
		return "version"
	}
	return "decode"
}

func (l *Listener) Start(ctx context.Context) error {
	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return errors.Wrap(err, "unable to set read deadline")
		}
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return errors.Wrap(err, "unable to read datagram")
		}
		if err := l.HandleDatagram(buf[:n], l.now()); err != nil {
			metrics.FramesRejected.WithLabelValues(rejectReason(err)).Inc()
			log.WithField("err", err).
				WithField("from", from).
				WithField("len", n).
				Warn("rejected telemetry frame")
			continue
		}
		metrics.FramesReceived.Inc()
		log.WithField("from", from).Debug("received telemetry frame")
	}
}

func (l *Listener) Close() error {
	return l.conn.Close()
}

package elm327

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jd3nn1s/obdlink/metrics"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

var ErrNotConnected = errors.New("elm327 adapter not connected")

const readTimeout = 500 * time.Millisecond

type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// to allow testing
var openPort = func(name string, baud int) (Port, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// to allow testing
var initSleep = time.Sleep

type Callbacks struct {
	Measurement func(pid PID, r telemetry.Record)
	Discarded   func(outcome Outcome, response string)
}

type Connection struct {
	port   Port
	parser *Parser

	writeMu sync.Mutex
}

func Connect(portName string, baud int) (*Connection, error) {
	port, err := openPort(portName, baud)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open serial port %s", portName)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, errors.Wrap(err, "unable to set serial read timeout")
	}
	log.WithField("port", portName).WithField("baud", baud).Info("opened ELM327 adapter")
	return &Connection{
		port:   port,
		parser: NewParser(),
	}, nil
}

// SetStrict switches the parser between lenient and strict hex decoding.
func (c *Connection) SetStrict(strict bool) {
	c.parser.Strict = strict
}

// Seed carries the last known values into this connection's parser.
func (c *Connection) Seed(r telemetry.Record) {
	c.parser.Seed(r)
}

// Initialize sends the AT init sequence, pausing after each command.
func (c *Connection) Initialize(ctx context.Context) error {
	for _, step := range InitSequence {
		if err := c.write(step.Command); err != nil {
			return errors.Wrapf(err, "unable to send %s", step.Command)
		}
		initSleep(step.Delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	log.Info("ELM327 adapter initialized")
	return nil
}

// Request asks the adapter for the current value of a Mode 01 PID.
func (c *Connection) Request(code string) error {
	return c.write(Command(code))
}

func (c *Connection) write(cmd string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.port == nil {
		return ErrNotConnected
	}
	log.WithField("cmd", cmd).Debug("writing to adapter")
	_, err := c.port.Write([]byte(cmd + "\r"))
	return err
}

// Start reads from the adapter until ctx is done or a read fails, feeding
// every character to the parser.
func (c *Connection) Start(ctx context.Context, cb Callbacks) error {
	if c.port == nil {
		return ErrNotConnected
	}
	c.parser.OnDecode = cb.Measurement
	c.parser.Reset()

	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := c.port.Read(buf)
		if err != nil {
			return errors.Wrap(err, "unable to read from adapter")
		}
		for _, ch := range buf[:n] {
			var pending string
			if isTerminator(ch) {
				pending = c.parser.Buffer()
			}
			outcome, done := c.parser.Feed(ch)
			if !done {
				continue
			}
			metrics.Responses.WithLabelValues(outcome.String()).Inc()
			if outcome != Decoded && cb.Discarded != nil {
				cb.Discarded(outcome, pending)
			}
		}
	}
}

func (c *Connection) Close() error {
	if c.port == nil {
		return ErrNotConnected
	}
	return c.port.Close()
}

package dashcan

import (
	"context"
	"encoding/binary"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// frame IDs understood by the dash display
const (
	frameCoolantTemp uint32 = 0x101
	frameSpeed              = 0x103
	frameRPM                = 0x104
	frameGear               = 0x105
)

// coolant is sent offset so the frame stays unsigned
const coolantOffset = 40

var ErrNotConnected = errors.New("can bus not connected")

type CANBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

// to allow testing
var newBus = func(portName string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(portName)
}

type Connection struct {
	bus CANBus
}

func Connect(portName string) (*Connection, error) {
	bus, err := newBus(portName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open can interface %s", portName)
	}
	return &Connection{
		bus: bus,
	}, nil
}

// Start runs the bus until ctx is done. Frames from the dash are only
// logged.
func (c *Connection) Start(ctx context.Context) error {
	if c.bus == nil {
		return ErrNotConnected
	}
	c.bus.SubscribeFunc(c.handleFrame)
	log.Info("CAN bus opened and subscribed")

	go func() {
		<-ctx.Done()
		log.WithField("err", ctx.Err()).Info("stopping can bus")
		if err := c.bus.Disconnect(); err != nil {
			log.WithField("err", err).Warn("unable to disconnect canbus after context")
		}
	}()

	return c.bus.ConnectAndPublish()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return ErrNotConnected
	}
	return c.bus.Disconnect()
}

func (c *Connection) SendSpeed(speed int) error {
	log.WithField("speed", speed).Debug("sending speed over canbus")
	return c.publish(frameSpeed, 1, [8]uint8{clampUint8(speed)})
}

func (c *Connection) SendGear(gear int) error {
	return c.publish(frameGear, 1, [8]uint8{clampUint8(gear)})
}

func (c *Connection) SendRPM(rpm int) error {
	log.WithField("rpm", rpm).Debug("sending rpm over canbus")
	return c.publishUint16(frameRPM, rpm)
}

func (c *Connection) SendCoolantTemp(temp int) error {
	return c.publishUint16(frameCoolantTemp, temp+coolantOffset)
}

func (c *Connection) publishUint16(id uint32, v int) error {
	data := [8]uint8{}
	binary.LittleEndian.PutUint16(data[0:2], clampUint16(v))
	return c.publish(id, 2, data)
}

func (c *Connection) publish(id uint32, length uint8, data [8]uint8) error {
	if c.bus == nil {
		return ErrNotConnected
	}
	return c.bus.Publish(can.Frame{
		ID:     id,
		Length: length,
		Data:   data,
	})
}

func (c *Connection) handleFrame(frame can.Frame) {
	log.WithField("canID", frame.ID).
		WithField("length", frame.Length).
		Debug("received canbus frame")
}

func clampUint8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 0xFF {
		return 0xFF
	}
	return uint8(v)
}

func clampUint16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

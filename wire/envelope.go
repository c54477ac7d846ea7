package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sigurn/crc16"
)

// A sealed frame is a version byte, the 32 byte frame and a CRC-16/MODBUS
// over both, low byte first.
const (
	Version    = 1
	SealedSize = 1 + FrameSize + 2
)

var (
	ErrVersion  = errors.New("unsupported wire frame version")
	ErrChecksum = errors.New("wire frame checksum mismatch")
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Seal wraps an encoded frame for links that can corrupt or mix protocols.
func Seal(frame []byte) []byte {
	out := make([]byte, 0, 1+len(frame)+2)
	out = append(out, Version)
	out = append(out, frame...)
	crc := crc16.Checksum(out, crcTable)
	return binary.LittleEndian.AppendUint16(out, crc)
}

// Open checks a sealed frame and returns the frame inside it.
func Open(b []byte) ([]byte, error) {
	if len(b) != SealedSize {
		return nil, errors.Wrapf(ErrFrameLength, "got %d sealed bytes, want %d", len(b), SealedSize)
	}
	if b[0] != Version {
		return nil, errors.Wrapf(ErrVersion, "version %d", b[0])
	}
	body := b[:len(b)-2]
	want := binary.LittleEndian.Uint16(b[len(b)-2:])
	if got := crc16.Checksum(body, crcTable); got != want {
		return nil, errors.Wrapf(ErrChecksum, "got %04x, want %04x", got, want)
	}
	return body[1:], nil
}

package deconz

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MinFrameSize is the smallest possible deCONZ frame: command-id, sequence,
// status, 2-byte length, and a 2-byte CRC with no payload.
const MinFrameSize = 7

var (
	// ErrFrameTooShort is returned when a buffer is too small to contain a
	// valid frame header and CRC.
	ErrFrameTooShort = errors.New("deconz: frame too short")
	// ErrCrcMismatch is returned when the trailing CRC does not match the
	// computed checksum of the preceding bytes.
	ErrCrcMismatch = errors.New("deconz: CRC mismatch")
	// ErrLengthMismatch is returned when the declared frame length doesn't
	// match the actual buffer size.
	ErrLengthMismatch = errors.New("deconz: frame length mismatch")
)

// Frame is a decoded deCONZ serial protocol frame.
type Frame struct {
	CommandID CommandID
	Sequence  byte
	Status    Status
	Payload   []byte
}

// crc computes the deCONZ checksum: the two's-complement of the 16-bit
// unsigned sum of every byte in data.
func crc(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return ^sum + 1
}

// Serialize encodes a frame to its on-wire representation, ready for SLIP
// encoding. frame_length covers everything except the trailing CRC.
func (f Frame) Serialize() []byte {
	length := 5 + len(f.Payload)
	buf := make([]byte, length, length+2)
	buf[0] = byte(f.CommandID)
	buf[1] = f.Sequence
	buf[2] = byte(f.Status)
	binary.LittleEndian.PutUint16(buf[3:5], uint16(length))
	copy(buf[5:], f.Payload)

	sum := crc(buf)
	out := make([]byte, length+2)
	copy(out, buf)
	binary.LittleEndian.PutUint16(out[length:], sum)
	return out
}

// DeserializeFrame validates and decodes a raw frame buffer (post SLIP
// unescaping). It rejects truncated buffers, length mismatches, and CRC
// failures; it does not reject an unrecognized command id, since the
// dispatcher treats those as a log-and-drop rather than a hard failure.
func DeserializeFrame(data []byte) (Frame, error) {
	if len(data) < MinFrameSize {
		return Frame{}, ErrFrameTooShort
	}

	body := data[:len(data)-2]
	declared := binary.LittleEndian.Uint16(data[3:5])
	if int(declared)+2 != len(data) {
		return Frame{}, fmt.Errorf("%w: declared %d, got %d bytes", ErrLengthMismatch, declared, len(data))
	}

	want := binary.LittleEndian.Uint16(data[len(data)-2:])
	got := crc(body)
	if want != got {
		return Frame{}, ErrCrcMismatch
	}

	return Frame{
		CommandID: CommandID(data[0]),
		Sequence:  data[1],
		Status:    Status(data[2]),
		Payload:   append([]byte(nil), data[5:len(data)-2]...),
	}, nil
}

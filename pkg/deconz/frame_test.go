package deconz

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{
		CommandID: CmdReadParameter,
		Sequence:  42,
		Status:    StatusSuccess,
		Payload:   []byte{0x01, 0x02, 0x03},
	}

	wire := f.Serialize()
	got, err := DeserializeFrame(wire)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.CommandID != f.CommandID || got.Sequence != f.Sequence || got.Status != f.Status {
		t.Fatalf("header mismatch: %+v", got)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: %x", got.Payload)
	}
}

func TestFrameTooShort(t *testing.T) {
	_, err := DeserializeFrame([]byte{1, 2, 3})
	if !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("expected ErrFrameTooShort, got %v", err)
	}
}

func TestFrameCrcMismatchOnBitFlip(t *testing.T) {
	f := Frame{CommandID: CmdVersion, Sequence: 1, Status: StatusSuccess, Payload: []byte{0xAA}}
	wire := f.Serialize()

	// Flip a bit in the payload, leaving header/CRC untouched.
	corrupt := append([]byte(nil), wire...)
	corrupt[5] ^= 0x01

	_, err := DeserializeFrame(corrupt)
	if !errors.Is(err, ErrCrcMismatch) {
		t.Fatalf("expected ErrCrcMismatch, got %v", err)
	}
}

func TestFrameLengthMismatch(t *testing.T) {
	f := Frame{CommandID: CmdVersion, Sequence: 1, Status: StatusSuccess, Payload: []byte{0xAA, 0xBB}}
	wire := f.Serialize()

	truncated := wire[:len(wire)-1]
	_, err := DeserializeFrame(truncated)
	if err == nil {
		t.Fatalf("expected an error for truncated frame")
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	f := Frame{CommandID: CmdDeviceState, Sequence: 7, Status: StatusSuccess}
	wire := f.Serialize()
	if len(wire) != MinFrameSize {
		t.Fatalf("expected minimum frame size %d, got %d", MinFrameSize, len(wire))
	}
	got, err := DeserializeFrame(wire)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %x", got.Payload)
	}
}

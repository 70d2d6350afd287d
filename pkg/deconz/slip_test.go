package deconz

import (
	"bytes"
	"testing"
)

func TestSlipRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0xC0},
		{0xDB},
		{0xC0, 0xDB, 0xC0, 0xDB},
		{0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
		bytes.Repeat([]byte{0xC0, 0xDB}, 32),
	}

	for _, raw := range cases {
		encoded := EncodeSlip(raw)
		dec := NewSlipDecoder()
		frames := dec.FeedAll(encoded)

		if len(raw) == 0 {
			if len(frames) != 0 {
				t.Fatalf("empty input: expected no frames, got %d", len(frames))
			}
			continue
		}

		if len(frames) != 1 {
			t.Fatalf("raw=%x: expected exactly 1 frame, got %d", raw, len(frames))
		}
		if !bytes.Equal(frames[0], raw) {
			t.Fatalf("raw=%x: round trip mismatch, got %x", raw, frames[0])
		}
	}
}

func TestSlipDecoderMultipleFrames(t *testing.T) {
	dec := NewSlipDecoder()
	var wire []byte
	wire = append(wire, EncodeSlip([]byte{1, 2, 3})...)
	wire = append(wire, EncodeSlip([]byte{4, 5})...)

	frames := dec.FeedAll(wire)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2, 3}) {
		t.Fatalf("frame 0 mismatch: %x", frames[0])
	}
	if !bytes.Equal(frames[1], []byte{4, 5}) {
		t.Fatalf("frame 1 mismatch: %x", frames[1])
	}
}

func TestSlipDecoderDropsEmptyFrames(t *testing.T) {
	dec := NewSlipDecoder()
	wire := []byte{slipEnd, slipEnd, slipEnd, 0x01, slipEnd}
	frames := dec.FeedAll(wire)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{0x01}) {
		t.Fatalf("frame mismatch: %x", frames[0])
	}
}

func TestSlipDecoderToleratesInvalidEscape(t *testing.T) {
	dec := NewSlipDecoder()
	wire := []byte{slipEsc, 0x42, slipEnd}
	frames := dec.FeedAll(wire)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{slipEsc, 0x42}) {
		t.Fatalf("expected literal escape pair preserved, got %x", frames[0])
	}
}

func TestSlipDecoderStreamedByteAtATime(t *testing.T) {
	dec := NewSlipDecoder()
	wire := EncodeSlip([]byte{0xAA, 0xBB, 0xCC})
	var got []byte
	for _, b := range wire {
		if frame, ok := dec.Feed(b); ok {
			got = frame
		}
	}
	if !bytes.Equal(got, []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("streamed decode mismatch: %x", got)
	}
}

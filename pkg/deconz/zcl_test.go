package deconz

import (
	"bytes"
	"testing"
)

func TestOnOffCommandRoundTrip(t *testing.T) {
	asdu := BuildOnOffCommand(OnOffCmdToggle)
	f, err := ParseZclFrame(asdu)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !f.ClusterSpecific {
		t.Fatalf("expected cluster-specific frame")
	}
	if f.CommandID != byte(OnOffCmdToggle) {
		t.Fatalf("command id mismatch: %x", f.CommandID)
	}
	if f.TransactionSeq != 1 {
		t.Fatalf("expected transaction seq 1, got %d", f.TransactionSeq)
	}
}

func TestReadAttributesResponseParsing(t *testing.T) {
	// attr 0x0000, success, boolean type, value 1.
	payload := []byte{0x00, 0x00, byte(StatusSuccess), byte(DataTypeBoolean), 0x01}
	attrs := ParseReadAttributesResponse(payload)
	v, ok := attrs[0x0000]
	if !ok {
		t.Fatalf("expected attribute 0x0000 present")
	}
	if !bytes.Equal(v, []byte{0x01}) {
		t.Fatalf("unexpected value: %x", v)
	}
}

func TestIEEEFormatAndParse(t *testing.T) {
	const addr uint64 = 0x0011223344556677
	s := FormatIEEE(addr)
	if s != "00:11:22:33:44:55:66:77" {
		t.Fatalf("unexpected format: %s", s)
	}
	got, err := ParseIEEE(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != addr {
		t.Fatalf("round trip mismatch: got %x want %x", got, addr)
	}

	bare, err := ParseIEEE("0011223344556677")
	if err != nil {
		t.Fatalf("parse bare: %v", err)
	}
	if bare != addr {
		t.Fatalf("bare round trip mismatch: got %x want %x", bare, addr)
	}
}

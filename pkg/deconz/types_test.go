package deconz

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestParseDeviceAnnouncement(t *testing.T) {
	asdu := make([]byte, 12)
	asdu[0] = 0x01 // tsn
	binary.LittleEndian.PutUint16(asdu[1:3], 0xABCD)
	binary.LittleEndian.PutUint64(asdu[3:11], 0x1122334455667788)
	asdu[11] = 0x0E // router + mains + rx-on-when-idle

	a, err := ParseDeviceAnnouncement(asdu)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.NwkAddress != 0xABCD {
		t.Fatalf("nwk address mismatch: %x", a.NwkAddress)
	}
	if a.IeeeAddress != 0x1122334455667788 {
		t.Fatalf("ieee mismatch: %x", a.IeeeAddress)
	}
	if !a.IsRouter() || !a.IsMainsPowered() || !a.RxOnWhenIdle() {
		t.Fatalf("expected all capability bits set: %+v", a)
	}
}

func TestParseDeviceAnnouncementTooShort(t *testing.T) {
	_, err := ParseDeviceAnnouncement([]byte{1, 2, 3})
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestParseApsDataIndicationNwkAddressing(t *testing.T) {
	var payload []byte
	payload = append(payload, byte(AddrModeNwk))
	destNwk := make([]byte, 2)
	binary.LittleEndian.PutUint16(destNwk, 0x0000)
	payload = append(payload, destNwk...)
	payload = append(payload, 0x01) // dest endpoint

	payload = append(payload, byte(AddrModeNwk))
	srcNwk := make([]byte, 2)
	binary.LittleEndian.PutUint16(srcNwk, 0x1234)
	payload = append(payload, srcNwk...)
	payload = append(payload, 0x01) // src endpoint

	profile := make([]byte, 2)
	binary.LittleEndian.PutUint16(profile, ProfileHomeAutomation)
	payload = append(payload, profile...)

	cluster := make([]byte, 2)
	binary.LittleEndian.PutUint16(cluster, ClusterOnOff)
	payload = append(payload, cluster...)

	asdu := []byte{0x09, 0x01, 0x01, 0x00} // frame-control, txn, cmd=on, one payload byte
	asduLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(asduLen, uint16(len(asdu)))
	payload = append(payload, asduLen...)
	payload = append(payload, asdu...)
	payload = append(payload, 200, byte(int8(-60))) // lqi, rssi

	ind, err := ParseApsDataIndication(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ind.Source.Nwk != 0x1234 {
		t.Fatalf("source nwk mismatch: %x", ind.Source.Nwk)
	}
	if ind.ClusterID != ClusterOnOff {
		t.Fatalf("cluster mismatch: %x", ind.ClusterID)
	}
	if len(ind.Asdu) != len(asdu) {
		t.Fatalf("asdu length mismatch: %d", len(ind.Asdu))
	}
	if !ind.HasLqiRssi || ind.Lqi != 200 {
		t.Fatalf("expected lqi/rssi trailer, got %+v", ind)
	}
}

func TestParseApsDataIndicationTruncated(t *testing.T) {
	_, err := ParseApsDataIndication([]byte{byte(AddrModeNwk), 0x00})
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestParseActiveEndpointsResponseTruncatedIsNotFatal(t *testing.T) {
	r := ParseActiveEndpointsResponse([]byte{0x01, byte(StatusFailure), 0x00, 0x00})
	if len(r.Endpoints) != 0 {
		t.Fatalf("expected no endpoints on failure status, got %v", r.Endpoints)
	}
}

func TestParseSimpleDescriptorResponse(t *testing.T) {
	asdu := []byte{
		0x01,              // tsn
		byte(StatusSuccess), // status
		0x00, 0x00,        // nwk address
		0x08,              // descriptor length (unused by parser beyond presence)
		0x01,              // endpoint
		0x04, 0x01,        // profile id LE = 0x0104
		0x00, 0x01,        // device id
		0x00,              // device version byte
		0x01,              // in-cluster count
		0x06, 0x00,        // cluster 0x0006
		0x00,              // out-cluster count
	}
	r := ParseSimpleDescriptorResponse(asdu)
	if r.Endpoint != 1 {
		t.Fatalf("endpoint mismatch: %d", r.Endpoint)
	}
	if r.ProfileID != ProfileHomeAutomation {
		t.Fatalf("profile mismatch: %x", r.ProfileID)
	}
	if len(r.InClusters) != 1 || r.InClusters[0] != ClusterOnOff {
		t.Fatalf("in-clusters mismatch: %v", r.InClusters)
	}
}

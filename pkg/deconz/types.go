package deconz

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidFrame signals a structurally malformed ASDU that could not be
// safely parsed; callers should log and drop rather than panic.
var ErrInvalidFrame = errors.New("deconz: invalid frame")

// DeviceState is the packed status reported by CmdDeviceStateChanged and
// read back via CmdDeviceState.
type DeviceState struct {
	NetworkState          byte // 2 bits: 0=offline 1=joining 2=connected 3=leaving
	ApsDataConfirm        bool
	ApsDataIndication     bool
	ConfigurationChanged  bool
	ApsRequestFreeSlots   bool
}

// ParseDeviceState unpacks the single status byte used by DeviceState and
// DeviceStateChanged frames.
func ParseDeviceState(b byte) DeviceState {
	return DeviceState{
		NetworkState:         b & 0x03,
		ApsDataConfirm:       b&0x04 != 0,
		ApsDataIndication:    b&0x08 != 0,
		ConfigurationChanged: b&0x10 != 0,
		ApsRequestFreeSlots:  b&0x20 != 0,
	}
}

// ApsAddress is a source or destination address in an APS indication,
// request, or confirm, whose shape depends on AddressMode.
type ApsAddress struct {
	Mode     AddressMode
	Group    uint16
	Nwk      uint16
	Ieee     uint64
	Endpoint byte
}

// readApsAddress consumes an address from buf at off according to mode,
// returning the address and the number of bytes consumed. It never panics
// on a short buffer; it returns an error instead so the caller can drop the
// indication.
func readApsAddress(mode AddressMode, buf []byte, off int) (ApsAddress, int, error) {
	addr := ApsAddress{Mode: mode}
	switch mode {
	case AddrModeGroup:
		if off+2 > len(buf) {
			return addr, 0, ErrInvalidFrame
		}
		addr.Group = binary.LittleEndian.Uint16(buf[off:])
		return addr, 2, nil
	case AddrModeNwk:
		if off+3 > len(buf) {
			return addr, 0, ErrInvalidFrame
		}
		addr.Nwk = binary.LittleEndian.Uint16(buf[off:])
		addr.Endpoint = buf[off+2]
		return addr, 3, nil
	case AddrModeIeee:
		if off+9 > len(buf) {
			return addr, 0, ErrInvalidFrame
		}
		addr.Ieee = binary.LittleEndian.Uint64(buf[off:])
		addr.Endpoint = buf[off+8]
		return addr, 9, nil
	case AddrModeNwkAndIeee:
		if off+11 > len(buf) {
			return addr, 0, ErrInvalidFrame
		}
		addr.Nwk = binary.LittleEndian.Uint16(buf[off:])
		addr.Ieee = binary.LittleEndian.Uint64(buf[off+2:])
		addr.Endpoint = buf[off+10]
		return addr, 11, nil
	default:
		return addr, 0, fmt.Errorf("%w: unknown address mode %d", ErrInvalidFrame, mode)
	}
}

// ApsDataIndication is a decoded unsolicited APS_DATA.indication payload.
type ApsDataIndication struct {
	Destination ApsAddress
	Source      ApsAddress
	ProfileID   uint16
	ClusterID   uint16
	Asdu        []byte
	Lqi         byte
	Rssi        int8
	HasLqiRssi  bool
}

// ParseApsDataIndication walks the variable-shape APS indication payload.
// Address consumption width depends on Mode; LQI/RSSI trailer is optional
// since some firmware omits it.
func ParseApsDataIndication(payload []byte) (ApsDataIndication, error) {
	var ind ApsDataIndication
	off := 0

	if off >= len(payload) {
		return ind, ErrInvalidFrame
	}
	destMode := AddressMode(payload[off])
	off++
	dest, n, err := readApsAddress(destMode, payload, off)
	if err != nil {
		return ind, err
	}
	ind.Destination = dest
	off += n

	if off >= len(payload) {
		return ind, ErrInvalidFrame
	}
	srcMode := AddressMode(payload[off])
	off++
	src, n, err := readApsAddress(srcMode, payload, off)
	if err != nil {
		return ind, err
	}
	ind.Source = src
	off += n

	if off+4 > len(payload) {
		return ind, ErrInvalidFrame
	}
	ind.ProfileID = binary.LittleEndian.Uint16(payload[off:])
	off += 2
	ind.ClusterID = binary.LittleEndian.Uint16(payload[off:])
	off += 2

	if off+2 > len(payload) {
		return ind, ErrInvalidFrame
	}
	asduLen := int(binary.LittleEndian.Uint16(payload[off:]))
	off += 2
	if off+asduLen > len(payload) {
		return ind, ErrInvalidFrame
	}
	ind.Asdu = append([]byte(nil), payload[off:off+asduLen]...)
	off += asduLen

	if off < len(payload) {
		ind.Lqi = payload[off]
		off++
		ind.HasLqiRssi = true
	}
	if off < len(payload) {
		ind.Rssi = int8(payload[off])
	}

	return ind, nil
}

// DeviceAnnouncement is the ZDO device_annce (cluster 0x0013) ASDU.
type DeviceAnnouncement struct {
	Tsn            byte
	NwkAddress     uint16
	IeeeAddress    uint64
	Capability     byte
}

// IsRouter reports whether the announcing device's capability flags mark
// it as a router rather than an end device.
func (a DeviceAnnouncement) IsRouter() bool { return a.Capability&0x02 != 0 }

// IsMainsPowered reports the mains-power capability bit.
func (a DeviceAnnouncement) IsMainsPowered() bool { return a.Capability&0x04 != 0 }

// RxOnWhenIdle reports the receiver-on-when-idle capability bit.
func (a DeviceAnnouncement) RxOnWhenIdle() bool { return a.Capability&0x08 != 0 }

// ParseDeviceAnnouncement decodes a device_annce ASDU: tsn(1) + nwk(2 LE) +
// ieee(8 LE) + capability(1), requiring at least 12 bytes.
func ParseDeviceAnnouncement(asdu []byte) (DeviceAnnouncement, error) {
	if len(asdu) < 12 {
		return DeviceAnnouncement{}, ErrInvalidFrame
	}
	return DeviceAnnouncement{
		Tsn:         asdu[0],
		NwkAddress:  binary.LittleEndian.Uint16(asdu[1:3]),
		IeeeAddress: binary.LittleEndian.Uint64(asdu[3:11]),
		Capability:  asdu[11],
	}, nil
}

// ActiveEndpointsResponse is the ZDO Active_EP_rsp ASDU: the set of
// endpoint ids present on a node.
type ActiveEndpointsResponse struct {
	Tsn        byte
	Status     Status
	NwkAddress uint16
	Endpoints  []byte
}

// ParseActiveEndpointsResponse tolerates truncation and a non-success
// status by returning an empty endpoint list rather than failing, since
// some radios echo a short ASDU on failure.
func ParseActiveEndpointsResponse(asdu []byte) ActiveEndpointsResponse {
	r := ActiveEndpointsResponse{}
	if len(asdu) < 4 {
		return r
	}
	r.Tsn = asdu[0]
	r.Status = Status(asdu[1])
	r.NwkAddress = binary.LittleEndian.Uint16(asdu[2:4])
	if r.Status != StatusSuccess || len(asdu) < 5 {
		return r
	}
	count := int(asdu[4])
	end := 5 + count
	if end > len(asdu) {
		end = len(asdu)
	}
	r.Endpoints = append([]byte(nil), asdu[5:end]...)
	return r
}

// SimpleDescriptorResponse is the ZDO Simple_Desc_rsp ASDU describing one
// endpoint's profile, device id, and cluster lists.
type SimpleDescriptorResponse struct {
	Tsn          byte
	Status       Status
	NwkAddress   uint16
	Endpoint     byte
	ProfileID    uint16
	DeviceID     uint16
	InClusters   []uint16
	OutClusters  []uint16
}

// ParseSimpleDescriptorResponse tolerates truncation: a short or
// non-success ASDU yields empty cluster lists instead of an error.
func ParseSimpleDescriptorResponse(asdu []byte) SimpleDescriptorResponse {
	r := SimpleDescriptorResponse{}
	if len(asdu) < 4 {
		return r
	}
	r.Tsn = asdu[0]
	r.Status = Status(asdu[1])
	r.NwkAddress = binary.LittleEndian.Uint16(asdu[2:4])
	if r.Status != StatusSuccess || len(asdu) < 6 {
		return r
	}
	// asdu[4] = descriptor length, asdu[5] = endpoint
	off := 5
	if off >= len(asdu) {
		return r
	}
	r.Endpoint = asdu[off]
	off++
	if off+6 > len(asdu) {
		return r
	}
	r.ProfileID = binary.LittleEndian.Uint16(asdu[off:])
	off += 2
	r.DeviceID = binary.LittleEndian.Uint16(asdu[off:])
	off += 2
	off++ // device version + reserved nibble, packed in one byte

	if off >= len(asdu) {
		return r
	}
	inCount := int(asdu[off])
	off++
	for i := 0; i < inCount && off+2 <= len(asdu); i++ {
		r.InClusters = append(r.InClusters, binary.LittleEndian.Uint16(asdu[off:]))
		off += 2
	}

	if off >= len(asdu) {
		return r
	}
	outCount := int(asdu[off])
	off++
	for i := 0; i < outCount && off+2 <= len(asdu); i++ {
		r.OutClusters = append(r.OutClusters, binary.LittleEndian.Uint16(asdu[off:]))
		off += 2
	}

	return r
}

// MacPoll is an unsolicited indication that a node is alive and polling.
type MacPoll struct {
	NwkAddress uint16
}

// ParseMacPoll decodes the 2-byte short address payload of a MAC poll
// notification.
func ParseMacPoll(payload []byte) (MacPoll, error) {
	if len(payload) < 2 {
		return MacPoll{}, ErrInvalidFrame
	}
	return MacPoll{NwkAddress: binary.LittleEndian.Uint16(payload)}, nil
}

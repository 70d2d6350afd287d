package deconz

import "encoding/binary"

// TxOptions bits for an ApsDataRequest.
const (
	TxOptionApsAck byte = 0x04
)

// ApsDataRequest describes an outbound APS_DATA.request, built and sent via
// CmdApsDataRequest.
type ApsDataRequest struct {
	Destination   ApsAddress
	ProfileID     uint16
	ClusterID     uint16
	SourceEndpoint byte
	Asdu          []byte
	TxOptions     byte
	Radius        byte
}

func writeApsAddress(addr ApsAddress) []byte {
	switch addr.Mode {
	case AddrModeGroup:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, addr.Group)
		return b
	case AddrModeNwk:
		b := make([]byte, 3)
		binary.LittleEndian.PutUint16(b, addr.Nwk)
		b[2] = addr.Endpoint
		return b
	case AddrModeIeee:
		b := make([]byte, 9)
		binary.LittleEndian.PutUint64(b, addr.Ieee)
		b[8] = addr.Endpoint
		return b
	case AddrModeNwkAndIeee:
		b := make([]byte, 11)
		binary.LittleEndian.PutUint16(b, addr.Nwk)
		binary.LittleEndian.PutUint64(b[2:], addr.Ieee)
		b[10] = addr.Endpoint
		return b
	default:
		return nil
	}
}

// Serialize builds the CmdApsDataRequest payload: request-id, flags,
// destination addressing, profile/cluster, source endpoint, ASDU, and
// tx-options/radius trailer.
func (r ApsDataRequest) Serialize(requestID byte) []byte {
	buf := []byte{requestID, 0x00, byte(r.Destination.Mode)}
	buf = append(buf, writeApsAddress(r.Destination)...)

	profile := make([]byte, 2)
	binary.LittleEndian.PutUint16(profile, r.ProfileID)
	buf = append(buf, profile...)

	cluster := make([]byte, 2)
	binary.LittleEndian.PutUint16(cluster, r.ClusterID)
	buf = append(buf, cluster...)

	buf = append(buf, r.SourceEndpoint)

	asduLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(asduLen, uint16(len(r.Asdu)))
	buf = append(buf, asduLen...)
	buf = append(buf, r.Asdu...)

	buf = append(buf, r.TxOptions, r.Radius)
	return buf
}

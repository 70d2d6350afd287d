package deconz

import (
	"context"
	"encoding/binary"
	"testing"
	"time"
)

// discardPort is a no-op serialPort fake used to exercise request
// correlation without a real device attached.
type discardPort struct{}

func (discardPort) Read(p []byte) (int, error)  { <-make(chan struct{}); return 0, nil }
func (discardPort) Write(p []byte) (int, error) { return len(p), nil }
func (discardPort) Close() error                { return nil }

// newTestTransport builds a Transport with no real serial port attached,
// for exercising dispatch logic in isolation.
func newTestTransport() *Transport {
	return &Transport{
		pending: make(map[byte]*pendingRequest),
		nextSeq: 1,
		bus:     NewEventBus[Event](),
		closed:  make(chan struct{}),
	}
}

func TestDispatchRoutesMatchedResponseToWaiter(t *testing.T) {
	tr := newTestTransport()

	pr := &pendingRequest{done: make(chan Frame, 1)}
	tr.pendingMu.Lock()
	tr.pending[5] = pr
	tr.pendingMu.Unlock()

	in := make(chan Frame, 1)
	go tr.dispatchLoop(in)

	in <- Frame{CommandID: CmdReadParameter, Sequence: 5, Status: StatusSuccess, Payload: []byte{0x01}}
	close(in)

	select {
	case resp := <-pr.done:
		if resp.Sequence != 5 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for matched response")
	}
}

func TestDispatchUnsolicitedDeviceAnnounceEmitsEvent(t *testing.T) {
	tr := newTestTransport()
	sub := tr.Subscribe()

	var payload []byte
	payload = append(payload, byte(AddrModeNwk), 0x00, 0x00, 0x01)
	payload = append(payload, byte(AddrModeNwk), 0x00, 0x00, 0x01)

	profile := make([]byte, 2)
	binary.LittleEndian.PutUint16(profile, ProfileZdo)
	payload = append(payload, profile...)

	cluster := make([]byte, 2)
	binary.LittleEndian.PutUint16(cluster, ZdoDeviceAnnounce)
	payload = append(payload, cluster...)

	asdu := make([]byte, 12)
	asdu[0] = 1
	binary.LittleEndian.PutUint16(asdu[1:3], 0x5678)
	binary.LittleEndian.PutUint64(asdu[3:11], 0xAABBCCDDEEFF0011)
	asdu[11] = 0x02

	asduLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(asduLen, uint16(len(asdu)))
	payload = append(payload, asduLen...)
	payload = append(payload, asdu...)

	tr.handleUnsolicited(Frame{CommandID: CmdApsDataIndication, Sequence: 9, Status: StatusSuccess, Payload: payload})

	select {
	case evt := <-sub:
		announced, ok := evt.(EventDeviceAnnounced)
		if !ok {
			t.Fatalf("expected EventDeviceAnnounced, got %T", evt)
		}
		if announced.Announcement.IeeeAddress != 0xAABBCCDDEEFF0011 {
			t.Fatalf("unexpected ieee: %x", announced.Announcement.IeeeAddress)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for device-announced event")
	}
}

func TestRequestTimesOutWithoutResponse(t *testing.T) {
	tr := newTestTransport()
	tr.port = discardPort{}

	_, err := tr.Request(context.Background(), CmdVersion, nil, 10*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

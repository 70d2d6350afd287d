package deconz

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DefaultRequestTimeout is used by Request when the caller doesn't specify
// one.
const DefaultRequestTimeout = 5 * time.Second

// readPollTimeout bounds each blocking read on the serial device so the
// reader goroutine stays responsive to shutdown.
const readPollTimeout = 100 * time.Millisecond

var (
	// ErrNotConnected is returned by any operation attempted after Close or
	// before Connect.
	ErrNotConnected = errors.New("deconz: not connected")
	// ErrTimeout is returned when a request's response does not arrive
	// within its timeout.
	ErrTimeout = errors.New("deconz: request timed out")
)

type pendingRequest struct {
	done chan Frame
}

// serialPort is the subset of go.bug.st/serial.Port the transport needs.
// Narrowing to an interface (rather than depending on serial.Port
// directly) lets tests exercise dispatch and request correlation against a
// fake without a real device attached.
type serialPort interface {
	io.ReadWriteCloser
}

// Transport owns the serial connection to the coordinator radio: SLIP
// framing, CRC-checked frame correlation, and a published event bus for
// unsolicited notifications. A single instance exclusively owns both
// directions of the serial port.
type Transport struct {
	port serialPort

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[byte]*pendingRequest
	nextSeq   byte

	bus *EventBus[Event]

	closeOnce sync.Once
	closed    chan struct{}
}

// Connect opens the serial device at 115200 8N1 and starts the reader and
// dispatcher goroutines. The reader runs on a locked OS thread because the
// serial read is blocking with a short poll timeout. There is no writer
// goroutine: Request writes each frame from the calling goroutine,
// serialized by writeMu.
func Connect(path string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readPollTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	t := &Transport{
		port:    port,
		pending: make(map[byte]*pendingRequest),
		nextSeq: 1,
		bus:     NewEventBus[Event](),
		closed:  make(chan struct{}),
	}

	frames := make(chan Frame, 64)
	go t.readLoop(frames)
	go t.dispatchLoop(frames)

	log.Info().Str("port", path).Msg("deconz transport connected")
	return t, nil
}

// readLoop owns the blocking serial read and SLIP decode; it is the only
// goroutine that ever touches the port for reading.
func (t *Transport) readLoop(out chan<- Frame) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(out)

	dec := NewSlipDecoder()
	buf := make([]byte, 256)
	for {
		select {
		case <-t.closed:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-t.closed:
			default:
				log.Warn().Err(err).Msg("deconz transport: serial read failed, terminating reader")
			}
			return
		}
		if n == 0 {
			continue
		}

		for _, raw := range dec.FeedAll(buf[:n]) {
			frame, err := DeserializeFrame(raw)
			if err != nil {
				log.Debug().Err(err).Msg("deconz transport: dropping malformed frame")
				continue
			}
			select {
			case out <- frame:
			case <-t.closed:
				return
			}
		}
	}
}

// dispatchLoop routes each decoded frame either to a waiting requester (by
// matching sequence) or to the event bus as an unsolicited notification.
func (t *Transport) dispatchLoop(in <-chan Frame) {
	for frame := range in {
		t.pendingMu.Lock()
		pr, ok := t.pending[frame.Sequence]
		if ok {
			delete(t.pending, frame.Sequence)
		}
		t.pendingMu.Unlock()

		if ok {
			pr.done <- frame
			continue
		}

		t.handleUnsolicited(frame)
	}
}

func (t *Transport) handleUnsolicited(frame Frame) {
	switch frame.CommandID {
	case CmdDeviceStateChanged:
		if len(frame.Payload) < 1 {
			return
		}
		state := ParseDeviceState(frame.Payload[0])
		t.bus.Publish(EventDeviceStateChanged{State: state})
		if state.ApsDataIndication {
			t.bus.Publish(EventApsDataAvailable{})
		}
	case CmdApsDataIndication:
		ind, err := ParseApsDataIndication(frame.Payload)
		if err != nil {
			log.Debug().Err(err).Msg("deconz transport: dropping unparseable indication")
			return
		}
		t.publishApsIndication(ind)
	case CmdMacPoll:
		if poll, err := ParseMacPoll(frame.Payload); err == nil {
			t.bus.Publish(EventMacPoll{Poll: poll})
		}
	default:
		log.Debug().Stringer("command", frame.CommandID).Msg("deconz transport: unhandled unsolicited frame")
	}
}

// publishApsIndication emits EventApsIndication for a parsed indication,
// plus EventDeviceAnnounced when it carries a ZDO device-announce. Shared
// between the unsolicited-frame path and RequestApsData's response path,
// since the radio delivers a pulled indication as the response payload to
// the very request that asked for it rather than as a later unsolicited
// frame.
func (t *Transport) publishApsIndication(ind ApsDataIndication) {
	if ind.ProfileID == ProfileZdo && ind.ClusterID == ZdoDeviceAnnounce {
		if ann, err := ParseDeviceAnnouncement(ind.Asdu); err == nil {
			t.bus.Publish(EventDeviceAnnounced{Announcement: ann, SourceNwk: ind.Source.Nwk})
		}
	}
	t.bus.Publish(EventApsIndication{Indication: ind})
}

// Subscribe returns a channel of unsolicited transport events.
func (t *Transport) Subscribe() chan Event { return t.bus.Subscribe() }

// Unsubscribe removes a subscriber registered via Subscribe.
func (t *Transport) Unsubscribe(ch chan Event) { t.bus.Unsubscribe(ch) }

// allocateSequence returns the next 8-bit request sequence, wrapping from
// 255 back to 1 (0 is reserved and never assigned).
func (t *Transport) allocateSequence() byte {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	seq := t.nextSeq
	if t.nextSeq == 255 {
		t.nextSeq = 1
	} else {
		t.nextSeq++
	}
	return seq
}

// Request sends a command and waits for the response sharing its sequence
// number. A zero timeout uses DefaultRequestTimeout.
func (t *Transport) Request(ctx context.Context, cmd CommandID, payload []byte, timeout time.Duration) (Frame, error) {
	select {
	case <-t.closed:
		return Frame{}, ErrNotConnected
	default:
	}

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	seq := t.allocateSequence()
	pr := &pendingRequest{done: make(chan Frame, 1)}

	t.pendingMu.Lock()
	t.pending[seq] = pr
	t.pendingMu.Unlock()

	frame := Frame{CommandID: cmd, Sequence: seq, Status: StatusSuccess, Payload: payload}
	wire := EncodeSlip(frame.Serialize())

	t.writeMu.Lock()
	_, writeErr := t.port.Write(wire)
	t.writeMu.Unlock()
	if writeErr != nil {
		t.pendingMu.Lock()
		delete(t.pending, seq)
		t.pendingMu.Unlock()
		return Frame{}, fmt.Errorf("deconz transport: write: %w", writeErr)
	}

	select {
	case resp, ok := <-pr.done:
		if !ok {
			return Frame{}, ErrNotConnected
		}
		return resp, nil
	case <-time.After(timeout):
		t.pendingMu.Lock()
		delete(t.pending, seq)
		t.pendingMu.Unlock()
		return Frame{}, ErrTimeout
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, seq)
		t.pendingMu.Unlock()
		return Frame{}, ctx.Err()
	case <-t.closed:
		return Frame{}, ErrNotConnected
	}
}

// ReadParameter issues a ReadParameter request and returns the parameter's
// raw value bytes (stripped of the leading parameter-id echo).
func (t *Transport) ReadParameter(ctx context.Context, id ParamID) ([]byte, error) {
	frame, err := t.Request(ctx, CmdReadParameter, []byte{byte(id)}, 0)
	if err != nil {
		return nil, err
	}
	if frame.Status != StatusSuccess {
		return nil, fmt.Errorf("deconz: read parameter %d: %s", id, frame.Status)
	}
	if len(frame.Payload) < 1 {
		return nil, ErrInvalidFrame
	}
	return frame.Payload[1:], nil
}

// WriteParameter issues a WriteParameter request with the given raw value
// bytes, validating the value length against the parameter's fixed width.
func (t *Transport) WriteParameter(ctx context.Context, id ParamID, value []byte) error {
	want := paramValueLen(id)
	if len(value) != want {
		return fmt.Errorf("deconz: parameter %d expects %d bytes, got %d", id, want, len(value))
	}
	payload := append([]byte{byte(id)}, value...)
	frame, err := t.Request(ctx, CmdWriteParameter, payload, 0)
	if err != nil {
		return err
	}
	if frame.Status != StatusSuccess {
		return fmt.Errorf("deconz: write parameter %d: %s", id, frame.Status)
	}
	return nil
}

// GetVersion reads back the firmware version reported by CmdVersion as a
// raw little-endian 4-byte value. Some deCONZ firmware revisions report
// this unreliably. NetworkManager.GetStatus reads neither this nor the
// ProtocolVersion parameter; NetworkStatus carries no version.
func (t *Transport) GetVersion(ctx context.Context) (uint32, error) {
	frame, err := t.Request(ctx, CmdVersion, nil, 0)
	if err != nil {
		return 0, err
	}
	if len(frame.Payload) < 4 {
		return 0, ErrInvalidFrame
	}
	return binary.LittleEndian.Uint32(frame.Payload[:4]), nil
}

// GetDeviceState reads back the current packed device-state byte.
func (t *Transport) GetDeviceState(ctx context.Context) (DeviceState, error) {
	frame, err := t.Request(ctx, CmdDeviceState, nil, 0)
	if err != nil {
		return DeviceState{}, err
	}
	if len(frame.Payload) < 1 {
		return DeviceState{}, ErrInvalidFrame
	}
	return ParseDeviceState(frame.Payload[0]), nil
}

// apsDataIndicationRequestFlags requests delivery of pending APS data.
const apsDataIndicationRequestFlags byte = 0x04

// RequestApsData asks the radio to deliver any buffered APS data. Unlike
// most requests, the radio delivers the pulled indication as the response
// payload to this very request rather than as a later unsolicited frame,
// so the response is parsed and published here directly (EventApsIndication,
// plus EventDeviceAnnounced for a ZDO device-announce).
func (t *Transport) RequestApsData(ctx context.Context) error {
	payload := make([]byte, 3)
	binary.LittleEndian.PutUint16(payload, 1)
	payload[2] = apsDataIndicationRequestFlags

	frame, err := t.Request(ctx, CmdApsDataIndication, payload, 0)
	if err != nil {
		return err
	}
	if frame.Status != StatusSuccess {
		return fmt.Errorf("deconz: request aps data: %s", frame.Status)
	}

	ind, err := ParseApsDataIndication(frame.Payload)
	if err != nil {
		log.Debug().Err(err).Msg("deconz transport: dropping unparseable pulled indication")
		return nil
	}
	t.publishApsIndication(ind)
	return nil
}

// SendApsRequest submits an outbound APS data request and returns once the
// radio has accepted (not necessarily delivered) it.
func (t *Transport) SendApsRequest(ctx context.Context, req ApsDataRequest) error {
	requestID := t.allocateSequence()
	frame, err := t.Request(ctx, CmdApsDataRequest, req.Serialize(requestID), 0)
	if err != nil {
		return err
	}
	if frame.Status != StatusSuccess {
		return fmt.Errorf("deconz: aps data request: %s", frame.Status)
	}
	return nil
}

// Close terminates the reader/dispatcher goroutines and closes the serial
// port. All in-flight requests resolve with ErrNotConnected.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.port.Close()
		t.bus.Close()

		t.pendingMu.Lock()
		for seq, pr := range t.pending {
			close(pr.done)
			delete(t.pending, seq)
		}
		t.pendingMu.Unlock()
	})
	return err
}

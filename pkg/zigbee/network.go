package zigbee

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nestwatch/conbee-gateway/pkg/deconz"
)

// NetworkEvent is the set of higher-level notifications the network
// manager publishes once raw transport events have been folded into
// inventory changes.
type NetworkEvent interface{ isNetworkEvent() }

// EventDeviceJoined fires the first time a device's announcement is seen.
type EventDeviceJoined struct{ Device *ZigbeeDevice }

// EventDeviceLeft fires when a device is explicitly removed.
type EventDeviceLeft struct{ IeeeAddress uint64 }

// EventDeviceUpdated fires on a subsequent change to a known device
// (re-announce, endpoint discovery, metadata edit). On/Off state changes
// are published as EventDeviceStateChanged instead.
type EventDeviceUpdated struct{ Device *ZigbeeDevice }

// EventDeviceStateChanged fires when an On/Off cluster command is observed
// for a device, either issued by us or reported by the radio.
type EventDeviceStateChanged struct {
	IeeeAddress uint64
	Endpoint    byte
	StateOn     bool
}

func (EventDeviceJoined) isNetworkEvent()       {}
func (EventDeviceLeft) isNetworkEvent()         {}
func (EventDeviceUpdated) isNetworkEvent()      {}
func (EventDeviceStateChanged) isNetworkEvent() {}

// NetworkStatus summarizes the coordinator's current operating state.
type NetworkStatus struct {
	Connected     bool   `json:"connected"`
	Channel       byte   `json:"channel"`
	PanID         uint16 `json:"pan_id"`
	ExtendedPanID uint64 `json:"extended_pan_id"`
	PermitJoin    bool   `json:"permit_join"`
	DeviceCount   int    `json:"device_count"`
}

// NetworkManager owns the live device inventory and drives discovery,
// command dispatch, and persistence on top of a connected transport.
type NetworkManager struct {
	transport *deconz.Transport
	dataDir   string

	devicesMu sync.RWMutex
	devices   map[uint64]*ZigbeeDevice
	byNwk     map[uint16]uint64

	bus *deconz.EventBus[NetworkEvent]

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewNetworkManager constructs a manager over an already-connected
// transport, loading any persisted device inventory from dataDir.
func NewNetworkManager(transport *deconz.Transport, dataDir string) *NetworkManager {
	nm := &NetworkManager{
		transport: transport,
		dataDir:   dataDir,
		devices:   make(map[uint64]*ZigbeeDevice),
		byNwk:     make(map[uint16]uint64),
		bus:       deconz.NewEventBus[NetworkEvent](),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	for _, d := range LoadDevices(nm.devicesPath()) {
		nm.devices[d.IeeeAddress] = d
		nm.byNwk[d.NwkAddress] = d.IeeeAddress
	}

	return nm
}

func (nm *NetworkManager) devicesPath() string {
	return nm.dataDir + "/devices.json"
}

// Start spawns the event-listener goroutine that folds raw transport
// events into inventory changes.
func (nm *NetworkManager) Start() {
	sub := nm.transport.Subscribe()
	go nm.listen(sub)
}

// Stop terminates the event listener.
func (nm *NetworkManager) Stop() {
	close(nm.stopCh)
	<-nm.doneCh
	nm.bus.Close()
}

// Subscribe returns a channel of higher-level network events.
func (nm *NetworkManager) Subscribe() chan NetworkEvent { return nm.bus.Subscribe() }

// Unsubscribe removes a subscriber registered via Subscribe.
func (nm *NetworkManager) Unsubscribe(ch chan NetworkEvent) { nm.bus.Unsubscribe(ch) }

func (nm *NetworkManager) listen(sub chan deconz.Event) {
	defer close(nm.doneCh)
	defer nm.transport.Unsubscribe(sub)

	for {
		select {
		case <-nm.stopCh:
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			nm.handleTransportEvent(evt)
		}
	}
}

func (nm *NetworkManager) handleTransportEvent(evt deconz.Event) {
	ctx := context.Background()
	switch e := evt.(type) {
	case deconz.EventApsDataAvailable:
		if err := nm.transport.RequestApsData(ctx); err != nil {
			log.Debug().Err(err).Msg("network manager: failed to pull pending aps data")
		}
	case deconz.EventDeviceStateChanged:
		if e.State.ApsDataIndication {
			if err := nm.transport.RequestApsData(ctx); err != nil {
				log.Debug().Err(err).Msg("network manager: failed to pull pending aps data")
			}
		}
	case deconz.EventDeviceAnnounced:
		nm.handleDeviceAnnounced(e)
	case deconz.EventMacPoll:
		nm.handleMacPoll(e)
	case deconz.EventApsIndication:
		nm.handleApsIndication(e.Indication)
	}
}

func (nm *NetworkManager) handleDeviceAnnounced(e deconz.EventDeviceAnnounced) {
	ieee := e.Announcement.IeeeAddress

	nm.devicesMu.Lock()
	d, exists := nm.devices[ieee]
	isNew := !exists
	if !exists {
		d = NewZigbeeDevice(ieee, e.Announcement.NwkAddress)
		nm.devices[ieee] = d
	}
	d.NwkAddress = e.Announcement.NwkAddress
	if e.Announcement.IsRouter() {
		d.DeviceType = DeviceTypeRouter
	} else {
		d.DeviceType = DeviceTypeEndDevice
	}
	d.Available = true
	d.LastSeen = time.Now()
	nm.byNwk[d.NwkAddress] = ieee
	nm.devicesMu.Unlock()

	if isNew {
		nm.bus.Publish(EventDeviceJoined{Device: d})
	} else {
		nm.bus.Publish(EventDeviceUpdated{Device: d})
	}
	nm.persist()

	if isNew {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := nm.DiscoverEndpoints(context.Background(), ieee); err != nil {
				log.Warn().Err(err).Uint64("ieee", ieee).Msg("network manager: endpoint discovery failed")
			}
		}()
	}
}

func (nm *NetworkManager) handleMacPoll(e deconz.EventMacPoll) {
	nm.devicesMu.Lock()
	ieee, ok := nm.byNwk[e.Poll.NwkAddress]
	if !ok {
		nm.devicesMu.Unlock()
		return
	}
	d := nm.devices[ieee]
	d.Available = true
	d.LastSeen = time.Now()
	nm.devicesMu.Unlock()
}

func (nm *NetworkManager) handleApsIndication(ind deconz.ApsDataIndication) {
	switch {
	case ind.ProfileID == deconz.ProfileHomeAutomation && ind.ClusterID == deconz.ClusterOnOff:
		nm.handleOnOffIndication(ind)
	case ind.ProfileID == deconz.ProfileZdo && ind.ClusterID == deconz.ZdoActiveEndpointsResponse:
		nm.handleActiveEndpointsResponse(ind)
	case ind.ProfileID == deconz.ProfileZdo && ind.ClusterID == deconz.ZdoSimpleDescriptorResponse:
		nm.handleSimpleDescriptorResponse(ind)
	}
}

func (nm *NetworkManager) handleOnOffIndication(ind deconz.ApsDataIndication) {
	zcl, err := deconz.ParseZclFrame(ind.Asdu)
	if err != nil || !zcl.ClusterSpecific {
		return
	}

	nm.devicesMu.Lock()
	ieee, ok := nm.byNwk[ind.Source.Nwk]
	if !ok {
		nm.devicesMu.Unlock()
		return
	}
	d := nm.devices[ieee]
	var stateOn bool
	switch deconz.OnOffCommand(zcl.CommandID) {
	case deconz.OnOffCmdOn:
		stateOn = true
	case deconz.OnOffCmdOff:
		stateOn = false
	case deconz.OnOffCmdToggle:
		stateOn = d.StateOn == nil || !*d.StateOn
	default:
		nm.devicesMu.Unlock()
		return
	}
	d.StateOn = &stateOn
	d.LastSeen = time.Now()
	nm.devicesMu.Unlock()

	nm.bus.Publish(EventDeviceStateChanged{IeeeAddress: ieee, Endpoint: ind.Source.Endpoint, StateOn: stateOn})
	nm.persist()
}

func (nm *NetworkManager) handleActiveEndpointsResponse(ind deconz.ApsDataIndication) {
	resp := deconz.ParseActiveEndpointsResponse(ind.Asdu)
	if len(resp.Endpoints) == 0 {
		return
	}

	nm.devicesMu.RLock()
	ieee, ok := nm.byNwk[resp.NwkAddress]
	nm.devicesMu.RUnlock()
	if !ok {
		return
	}

	for _, ep := range resp.Endpoints {
		go func(endpoint byte) {
			if err := nm.DiscoverSimpleDescriptor(context.Background(), ieee, endpoint); err != nil {
				log.Debug().Err(err).Uint64("ieee", ieee).Uint8("endpoint", endpoint).Msg("simple descriptor discovery failed")
			}
		}(ep)
	}
}

func (nm *NetworkManager) handleSimpleDescriptorResponse(ind deconz.ApsDataIndication) {
	resp := deconz.ParseSimpleDescriptorResponse(ind.Asdu)
	if resp.ProfileID == 0 {
		return
	}

	nm.devicesMu.Lock()
	ieee, ok := nm.byNwk[resp.NwkAddress]
	if !ok {
		nm.devicesMu.Unlock()
		return
	}
	d := nm.devices[ieee]
	d.UpsertEndpoint(Endpoint{
		ID:          resp.Endpoint,
		ProfileID:   resp.ProfileID,
		DeviceID:    resp.DeviceID,
		InClusters:  resp.InClusters,
		OutClusters: resp.OutClusters,
	})
	nm.devicesMu.Unlock()

	nm.bus.Publish(EventDeviceUpdated{Device: d})
	nm.persist()
}

// --- Commands ---

// PermitJoin enables or disables pairing mode for durationSecs seconds (0
// disables).
func (nm *NetworkManager) PermitJoin(ctx context.Context, durationSecs byte) error {
	return nm.transport.WriteParameter(ctx, deconz.ParamPermitJoin, []byte{durationSecs})
}

// SendOnOff issues an On/Off cluster command to a known device's endpoint,
// optimistically updating the cached state_on on success.
func (nm *NetworkManager) SendOnOff(ctx context.Context, ieee uint64, endpoint byte, cmd deconz.OnOffCommand) error {
	nm.devicesMu.RLock()
	d, ok := nm.devices[ieee]
	nm.devicesMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deconz.FormatIEEE(ieee))
	}

	req := deconz.ApsDataRequest{
		Destination: deconz.ApsAddress{Mode: deconz.AddrModeNwk, Nwk: d.NwkAddress, Endpoint: endpoint},
		ProfileID:   deconz.ProfileHomeAutomation,
		ClusterID:   deconz.ClusterOnOff,
		SourceEndpoint: 1,
		Asdu:        deconz.BuildOnOffCommand(cmd),
		TxOptions:   deconz.TxOptionApsAck,
		Radius:      0,
	}
	if err := nm.transport.SendApsRequest(ctx, req); err != nil {
		return err
	}

	nm.devicesMu.Lock()
	var stateOn bool
	switch cmd {
	case deconz.OnOffCmdOn:
		stateOn = true
	case deconz.OnOffCmdOff:
		stateOn = false
	case deconz.OnOffCmdToggle:
		stateOn = d.StateOn == nil || !*d.StateOn
	}
	d.StateOn = &stateOn
	nm.devicesMu.Unlock()

	nm.bus.Publish(EventDeviceStateChanged{IeeeAddress: ieee, Endpoint: endpoint, StateOn: stateOn})
	nm.persist()
	return nil
}

// DiscoverEndpoints sends a ZDO Active_EP_req for a device; the response
// is processed asynchronously by the event listener.
func (nm *NetworkManager) DiscoverEndpoints(ctx context.Context, ieee uint64) error {
	nm.devicesMu.RLock()
	d, ok := nm.devices[ieee]
	nm.devicesMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deconz.FormatIEEE(ieee))
	}

	asdu := make([]byte, 3)
	asdu[0] = 1 // tsn
	binary.LittleEndian.PutUint16(asdu[1:], d.NwkAddress)

	req := deconz.ApsDataRequest{
		Destination:    deconz.ApsAddress{Mode: deconz.AddrModeNwk, Nwk: d.NwkAddress, Endpoint: 0},
		ProfileID:      deconz.ProfileZdo,
		ClusterID:      deconz.ZdoActiveEndpointsRequest,
		SourceEndpoint: 0,
		Asdu:           asdu,
		TxOptions:      0,
	}
	return nm.transport.SendApsRequest(ctx, req)
}

// DiscoverSimpleDescriptor sends a ZDO Simple_Desc_req for one endpoint of
// a device; the response is processed asynchronously.
func (nm *NetworkManager) DiscoverSimpleDescriptor(ctx context.Context, ieee uint64, endpoint byte) error {
	nm.devicesMu.RLock()
	d, ok := nm.devices[ieee]
	nm.devicesMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deconz.FormatIEEE(ieee))
	}

	asdu := make([]byte, 4)
	asdu[0] = 1 // tsn
	binary.LittleEndian.PutUint16(asdu[1:], d.NwkAddress)
	asdu[3] = endpoint

	req := deconz.ApsDataRequest{
		Destination:    deconz.ApsAddress{Mode: deconz.AddrModeNwk, Nwk: d.NwkAddress, Endpoint: 0},
		ProfileID:      deconz.ProfileZdo,
		ClusterID:      deconz.ZdoSimpleDescriptorRequest,
		SourceEndpoint: 0,
		Asdu:           asdu,
		TxOptions:      0,
	}
	return nm.transport.SendApsRequest(ctx, req)
}

// UpdateDeviceMetadata edits the user-facing name/category of a known
// device; nil arguments leave the corresponding field untouched.
func (nm *NetworkManager) UpdateDeviceMetadata(ieee uint64, friendlyName *string, category *DeviceCategory) error {
	nm.devicesMu.Lock()
	d, ok := nm.devices[ieee]
	if !ok {
		nm.devicesMu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deconz.FormatIEEE(ieee))
	}
	if friendlyName != nil {
		d.FriendlyName = friendlyName
	}
	if category != nil {
		d.Category = *category
	}
	nm.devicesMu.Unlock()

	nm.bus.Publish(EventDeviceUpdated{Device: d})
	nm.persist()
	return nil
}

// RemoveDevice deletes a device from the inventory.
func (nm *NetworkManager) RemoveDevice(ieee uint64) error {
	nm.devicesMu.Lock()
	d, ok := nm.devices[ieee]
	if !ok {
		nm.devicesMu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deconz.FormatIEEE(ieee))
	}
	delete(nm.devices, ieee)
	delete(nm.byNwk, d.NwkAddress)
	nm.devicesMu.Unlock()

	nm.bus.Publish(EventDeviceLeft{IeeeAddress: ieee})
	nm.persist()
	return nil
}

// ListDevices returns a snapshot of every known device.
func (nm *NetworkManager) ListDevices() []*ZigbeeDevice {
	nm.devicesMu.RLock()
	defer nm.devicesMu.RUnlock()
	out := make([]*ZigbeeDevice, 0, len(nm.devices))
	for _, d := range nm.devices {
		out = append(out, d)
	}
	return out
}

// GetDevice returns a known device by IEEE address.
func (nm *NetworkManager) GetDevice(ieee uint64) (*ZigbeeDevice, bool) {
	nm.devicesMu.RLock()
	defer nm.devicesMu.RUnlock()
	d, ok := nm.devices[ieee]
	return d, ok
}

// GetStatus reads back the coordinator's current network configuration.
// Individual parameter reads are best-effort: a failed read yields a zero
// value in that field rather than failing the whole call.
func (nm *NetworkManager) GetStatus(ctx context.Context) NetworkStatus {
	status := NetworkStatus{}

	if state, err := nm.transport.GetDeviceState(ctx); err == nil {
		status.Connected = state.NetworkState == 2
	}
	if b, err := nm.transport.ReadParameter(ctx, deconz.ParamCurrentChannel); err == nil && len(b) >= 1 {
		status.Channel = b[0]
	}
	if b, err := nm.transport.ReadParameter(ctx, deconz.ParamNwkPanID); err == nil && len(b) >= 2 {
		status.PanID = binary.LittleEndian.Uint16(b)
	}
	if b, err := nm.transport.ReadParameter(ctx, deconz.ParamNwkExtPanID); err == nil && len(b) >= 8 {
		status.ExtendedPanID = binary.LittleEndian.Uint64(b)
	}
	if b, err := nm.transport.ReadParameter(ctx, deconz.ParamPermitJoin); err == nil && len(b) >= 1 {
		status.PermitJoin = b[0] != 0
	}

	nm.devicesMu.RLock()
	status.DeviceCount = len(nm.devices)
	nm.devicesMu.RUnlock()

	return status
}

func (nm *NetworkManager) persist() {
	if err := SaveDevices(nm.devicesPath(), nm.ListDevices()); err != nil {
		log.Warn().Err(err).Msg("network manager: failed to persist device inventory")
	}
}

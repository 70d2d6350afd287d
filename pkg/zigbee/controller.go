package zigbee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nestwatch/conbee-gateway/pkg/deconz"
	"github.com/nestwatch/conbee-gateway/pkg/device"
)

// Controller adapts a NetworkManager to the protocol-agnostic
// device.Controller and device.EventSubscriber interfaces, so the HTTP API
// never needs to know it's talking to a Zigbee radio specifically. The
// automation engine uses the NetworkManager directly (see NetworkManager
// below).
type Controller struct {
	transport *deconz.Transport
	manager   *NetworkManager

	subscribersMu sync.Mutex
	subscribers   []chan device.DiscoveryEvent
}

// NewController opens the coordinator radio at portPath (or the default
// search list if empty), starts the network manager, and returns a ready
// controller.
func NewController(portPath, dataDir string) (*Controller, error) {
	transport, err := ConnectRadio(portPath)
	if err != nil {
		return nil, fmt.Errorf("connect radio: %w", err)
	}

	manager := NewNetworkManager(transport, dataDir)
	manager.Start()

	c := &Controller{transport: transport, manager: manager}

	events := manager.Subscribe()
	go c.forwardEvents(events)

	log.Info().Msg("zigbee controller ready")
	return c, nil
}

func (c *Controller) forwardEvents(events chan NetworkEvent) {
	for evt := range events {
		var de device.DiscoveryEvent
		switch e := evt.(type) {
		case EventDeviceJoined:
			d := deviceDTO(e.Device)
			de = device.DiscoveryEvent{Type: "device_joined", Device: &d, Timestamp: time.Now()}
		case EventDeviceLeft:
			de = device.DiscoveryEvent{Type: "device_left", Device: &device.Device{ID: deconz.FormatIEEE(e.IeeeAddress)}, Timestamp: time.Now()}
		case EventDeviceUpdated:
			d := deviceDTO(e.Device)
			de = device.DiscoveryEvent{Type: "device_updated", Device: &d, Timestamp: time.Now()}
		case EventDeviceStateChanged:
			de = device.DiscoveryEvent{Type: "device_state_changed", Device: &device.Device{ID: deconz.FormatIEEE(e.IeeeAddress)}, Timestamp: time.Now()}
		default:
			continue
		}
		c.publish(de)
	}
}

func (c *Controller) publish(evt device.DiscoveryEvent) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func deviceStateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"state": map[string]any{
				"type": "string",
				"enum": []string{"ON", "OFF", "TOGGLE"},
			},
		},
		"required": []string{"state"},
	}
}

func deviceDTO(d *ZigbeeDevice) device.Device {
	schema, _ := json.Marshal(deviceStateSchema())
	manufacturer, model := "Unknown", "Unknown"
	if d.Manufacturer != nil {
		manufacturer = *d.Manufacturer
	}
	if d.Model != nil {
		model = *d.Model
	}
	return device.Device{
		ID:           d.IeeeAddressString(),
		Name:         d.DisplayName(),
		Type:         d.InferredType(),
		Protocol:     device.ProtocolZigbee,
		Manufacturer: manufacturer,
		Model:        model,
		StateSchema:  schema,
	}
}

func resolveIEEE(id string) (uint64, error) {
	return deconz.ParseIEEE(id)
}

// --- device.Controller interface ---

func (c *Controller) ListDevices(_ context.Context) ([]device.Device, error) {
	devices := c.manager.ListDevices()
	out := make([]device.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceDTO(d))
	}
	return out, nil
}

func (c *Controller) GetDevice(_ context.Context, id string) (*device.Device, error) {
	ieee, err := resolveIEEE(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", device.ErrNotFound, id)
	}
	d, ok := c.manager.GetDevice(ieee)
	if !ok {
		return nil, device.ErrNotFound
	}
	dto := deviceDTO(d)
	return &dto, nil
}

func (c *Controller) RenameDevice(_ context.Context, id, newName string) error {
	ieee, err := resolveIEEE(id)
	if err != nil {
		return fmt.Errorf("%w: %s", device.ErrNotFound, id)
	}
	if err := c.manager.UpdateDeviceMetadata(ieee, &newName, nil); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return device.ErrNotFound
		}
		return err
	}
	return nil
}

func (c *Controller) RemoveDevice(_ context.Context, id string, _ bool) error {
	ieee, err := resolveIEEE(id)
	if err != nil {
		return fmt.Errorf("%w: %s", device.ErrNotFound, id)
	}
	if err := c.manager.RemoveDevice(ieee); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return device.ErrNotFound
		}
		return err
	}
	return nil
}

func (c *Controller) GetDeviceState(_ context.Context, id string) (device.DeviceState, error) {
	ieee, err := resolveIEEE(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", device.ErrNotFound, id)
	}
	d, ok := c.manager.GetDevice(ieee)
	if !ok {
		return nil, device.ErrNotFound
	}
	state := make(device.DeviceState)
	if d.StateOn != nil {
		state["state"] = boolToOnOff(*d.StateOn)
	}
	return state, nil
}

func (c *Controller) SetDeviceState(ctx context.Context, id string, state map[string]any) (device.DeviceState, error) {
	ieee, err := resolveIEEE(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", device.ErrNotFound, id)
	}
	d, ok := c.manager.GetDevice(ieee)
	if !ok {
		return nil, device.ErrNotFound
	}

	stateVal, ok := state["state"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"state\" field", device.ErrValidation)
	}
	strVal, ok := stateVal.(string)
	if !ok {
		return nil, fmt.Errorf("%w: \"state\" must be a string", device.ErrValidation)
	}

	var cmd deconz.OnOffCommand
	switch strings.ToUpper(strVal) {
	case "ON":
		cmd = deconz.OnOffCmdOn
	case "OFF":
		cmd = deconz.OnOffCmdOff
	case "TOGGLE":
		cmd = deconz.OnOffCmdToggle
	default:
		return nil, fmt.Errorf("%w: invalid state value %q", device.ErrValidation, strVal)
	}

	endpoint := byte(1)
	if len(d.Endpoints) > 0 {
		endpoint = d.Endpoints[0].ID
	}

	if err := c.manager.SendOnOff(ctx, ieee, endpoint, cmd); err != nil {
		return nil, fmt.Errorf("send on/off command: %w", err)
	}

	return c.GetDeviceState(ctx, id)
}

func (c *Controller) PermitJoin(ctx context.Context, enable bool, duration int) error {
	var secs byte
	if enable {
		if duration <= 0 || duration > 254 {
			secs = 254
		} else {
			secs = byte(duration)
		}
	}
	return c.manager.PermitJoin(ctx, secs)
}

func (c *Controller) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status := c.manager.GetStatus(ctx)
	return status.Connected
}

func (c *Controller) Close() {
	c.manager.Stop()
	if err := c.transport.Close(); err != nil {
		log.Warn().Err(err).Msg("zigbee controller: failed to close transport")
	}
	log.Info().Msg("zigbee controller closed")
}

// --- device.EventSubscriber interface ---

func (c *Controller) Subscribe() chan device.DiscoveryEvent {
	ch := make(chan device.DiscoveryEvent, 16)
	c.subscribersMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subscribersMu.Unlock()
	return ch
}

func (c *Controller) Unsubscribe(ch chan device.DiscoveryEvent) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// NetworkManager exposes the underlying manager for callers (the
// automation engine) that need network-level operations beyond the
// protocol-agnostic device.Controller surface.
func (c *Controller) NetworkManager() *NetworkManager { return c.manager }

func boolToOnOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

package zigbee

import (
	"time"

	"github.com/nestwatch/conbee-gateway/pkg/deconz"
)

// DeviceType is the Zigbee network role a device announced with.
type DeviceType string

const (
	DeviceTypeCoordinator DeviceType = "coordinator"
	DeviceTypeRouter      DeviceType = "router"
	DeviceTypeEndDevice   DeviceType = "end_device"
)

// DeviceCategory is a user-facing classification independent of the
// network role, used to drive UI presentation. It defaults to Other and
// is only ever set explicitly via UpdateDeviceMetadata.
type DeviceCategory string

const (
	CategoryLight      DeviceCategory = "light"
	CategoryOutlet     DeviceCategory = "outlet"
	CategorySwitch     DeviceCategory = "switch"
	CategorySensor     DeviceCategory = "sensor"
	CategoryLock       DeviceCategory = "lock"
	CategoryThermostat DeviceCategory = "thermostat"
	CategoryFan        DeviceCategory = "fan"
	CategoryBlinds     DeviceCategory = "blinds"
	CategoryOther      DeviceCategory = "other"
)

// Endpoint describes one application endpoint on a Zigbee node.
type Endpoint struct {
	ID          byte     `json:"id"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceID    uint16   `json:"device_id"`
	InClusters  []uint16 `json:"in_clusters"`
	OutClusters []uint16 `json:"out_clusters"`
}

// HasCluster reports whether id is present in either the endpoint's input
// or output cluster lists.
func (e Endpoint) HasCluster(id uint16) bool {
	for _, c := range e.InClusters {
		if c == id {
			return true
		}
	}
	for _, c := range e.OutClusters {
		if c == id {
			return true
		}
	}
	return false
}

// IsLight reports whether the endpoint exposes On/Off or Level Control,
// the two clusters every dimmable or switchable light implements.
func (e Endpoint) IsLight() bool {
	return e.HasCluster(deconz.ClusterOnOff) || e.HasCluster(deconz.ClusterLevelControl)
}

// IsColorLight reports whether the endpoint additionally exposes Color
// Control.
func (e Endpoint) IsColorLight() bool { return e.HasCluster(deconz.ClusterColorControl) }

// HasTemperature reports whether the endpoint exposes Temperature
// Measurement.
func (e Endpoint) HasTemperature() bool { return e.HasCluster(deconz.ClusterTemperatureMeasurement) }

// HasHumidity reports whether the endpoint exposes Humidity Measurement.
func (e Endpoint) HasHumidity() bool { return e.HasCluster(deconz.ClusterHumidityMeasurement) }

// IsOccupancySensor reports whether the endpoint exposes Occupancy
// Sensing.
func (e Endpoint) IsOccupancySensor() bool { return e.HasCluster(deconz.ClusterOccupancySensing) }

// ZigbeeDevice is a node in the device inventory, identified by its IEEE
// address. NWK address, endpoints, and state are all mutable as the
// network reports updates.
type ZigbeeDevice struct {
	IeeeAddress  uint64     `json:"ieee_address"`
	NwkAddress   uint16     `json:"nwk_address"`
	DeviceType   DeviceType `json:"device_type"`
	Category     DeviceCategory `json:"category,omitempty"`
	Manufacturer *string    `json:"manufacturer,omitempty"`
	Model        *string    `json:"model,omitempty"`
	FriendlyName *string    `json:"friendly_name,omitempty"`
	Endpoints    []Endpoint `json:"endpoints"`
	LastSeen     time.Time  `json:"-"`
	Lqi          *byte      `json:"lqi,omitempty"`
	Available    bool       `json:"available"`
	StateOn      *bool      `json:"state_on,omitempty"`
}

// NewZigbeeDevice constructs a device record in its just-announced state.
func NewZigbeeDevice(ieee uint64, nwk uint16) *ZigbeeDevice {
	return &ZigbeeDevice{
		IeeeAddress: ieee,
		NwkAddress:  nwk,
		DeviceType:  DeviceTypeEndDevice,
		Category:    CategoryOther,
		Available:   true,
		LastSeen:    time.Now(),
	}
}

// IeeeAddressString renders the device's IEEE address in its canonical
// colon-separated external form.
func (d *ZigbeeDevice) IeeeAddressString() string {
	return deconz.FormatIEEE(d.IeeeAddress)
}

// DisplayName resolves the best available human-readable name: friendly
// name, then model, then the IEEE address string as a last resort.
func (d *ZigbeeDevice) DisplayName() string {
	if d.FriendlyName != nil && *d.FriendlyName != "" {
		return *d.FriendlyName
	}
	if d.Model != nil && *d.Model != "" {
		return *d.Model
	}
	return d.IeeeAddressString()
}

// Endpoint returns the endpoint with the given id, if known.
func (d *ZigbeeDevice) Endpoint(id byte) (Endpoint, bool) {
	for _, ep := range d.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// UpsertEndpoint replaces the endpoint with a matching id, or appends it if
// none is found.
func (d *ZigbeeDevice) UpsertEndpoint(ep Endpoint) {
	for i, existing := range d.Endpoints {
		if existing.ID == ep.ID {
			d.Endpoints[i] = ep
			return
		}
	}
	d.Endpoints = append(d.Endpoints, ep)
}

// InferredType derives a coarse device-type string for protocol-agnostic
// clients (the HTTP API) from the device's endpoint cluster lists, falling
// back to the explicit user category when no endpoint is informative.
func (d *ZigbeeDevice) InferredType() string {
	for _, ep := range d.Endpoints {
		switch {
		case ep.IsColorLight(), ep.IsLight():
			return string(CategoryLight)
		case ep.IsOccupancySensor(), ep.HasTemperature(), ep.HasHumidity():
			return string(CategorySensor)
		case ep.HasCluster(deconz.ClusterDoorLock):
			return string(CategoryLock)
		}
	}
	if d.Category != "" {
		return string(d.Category)
	}
	return string(CategoryOther)
}

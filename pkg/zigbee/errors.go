package zigbee

import "errors"

// ErrDeviceNotFound is returned by any network manager operation targeting
// an IEEE address absent from the inventory.
var ErrDeviceNotFound = errors.New("zigbee: device not found")

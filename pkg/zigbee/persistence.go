package zigbee

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// LoadDevices reads the device inventory snapshot from path. A missing
// file yields an empty inventory; a corrupt file is logged and also
// yields an empty inventory rather than failing startup.
func LoadDevices(path string) []*ZigbeeDevice {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no device snapshot found, starting with empty inventory")
			return nil
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to read device snapshot")
		return nil
	}

	var devices []*ZigbeeDevice
	if err := json.Unmarshal(data, &devices); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse device snapshot, starting empty")
		return nil
	}

	log.Info().Int("count", len(devices)).Str("path", path).Msg("loaded device snapshot")
	return devices
}

// SaveDevices writes the device inventory to path atomically: serialize,
// write to a temp file, then rename over the destination.
func SaveDevices(path string, devices []*ZigbeeDevice) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	log.Debug().Int("count", len(devices)).Str("path", path).Msg("saved device snapshot")
	return nil
}

package zigbee

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nestwatch/conbee-gateway/pkg/deconz"
)

// defaultPortCandidates is tried, in order, when CONBEE_PORT is unset.
var defaultPortCandidates = []string{"/dev/conbee2", "/dev/ttyACM0", "/dev/ttyUSB0"}

// ConnectRadio opens the coordinator's serial device. If configuredPath is
// empty, each of defaultPortCandidates is tried in turn and the first that
// opens successfully is used.
func ConnectRadio(configuredPath string) (*deconz.Transport, error) {
	if configuredPath != "" {
		return deconz.Connect(configuredPath)
	}

	var lastErr error
	for _, candidate := range defaultPortCandidates {
		t, err := deconz.Connect(candidate)
		if err == nil {
			log.Info().Str("port", candidate).Msg("zigbee: connected to coordinator radio")
			return t, nil
		}
		log.Debug().Err(err).Str("port", candidate).Msg("zigbee: candidate port unavailable")
		lastErr = err
	}

	return nil, fmt.Errorf("zigbee: no coordinator radio found among %v: %w", defaultPortCandidates, lastErr)
}

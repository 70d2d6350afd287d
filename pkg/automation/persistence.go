package automation

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// LoadAutomations reads the automation list from path. A missing file
// yields an empty list; a corrupt file is logged and also yields an empty
// list rather than failing startup.
func LoadAutomations(path string) []*Automation {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no automation snapshot found, starting with none")
			return nil
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to read automation snapshot")
		return nil
	}

	var automations []*Automation
	if err := json.Unmarshal(data, &automations); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse automation snapshot, starting empty")
		return nil
	}

	log.Info().Int("count", len(automations)).Str("path", path).Msg("loaded automation snapshot")
	return automations
}

// SaveAutomations writes the automation list to path atomically.
func SaveAutomations(path string, automations []*Automation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(automations, "", "  ")
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

	log.Debug().Int("count", len(automations)).Str("path", path).Msg("saved automation snapshot")
	return nil
}

package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/capmode"
	"github.com/unbound-ml/unbound/logger"
)

// createBackup rotates backups (.back1, .back2, .back3) before a write.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// A stuck oldest backup should not block the save.
		logger.Warnw("failed to delete old config backup", "path", back3, "error", err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, 0o644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// loadOrInit reads the TOML file at path into a generic map, creating the
// parent directory and returning an empty map when the file does not exist.
func loadOrInit(path string) (map[string]interface{}, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create config directory")
	}

	var settings map[string]interface{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &settings); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}
	if settings == nil {
		settings = make(map[string]interface{})
	}

	return settings, nil
}

// saveSettings writes the settings map to path as TOML, with backup
// rotation. The write is flagged so a running watcher does not reload its
// own change.
func saveSettings(path string, settings map[string]interface{}) error {
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}

	return nil
}

// UpdateMode persists a capability mode under [dispatch] in the config file
// at path, preserving all other settings.
func UpdateMode(path string, mode capmode.Mode) error {
	settings, err := loadOrInit(path)
	if err != nil {
		return err
	}

	var dispatch map[string]interface{}
	if d, ok := settings["dispatch"].(map[string]interface{}); ok {
		dispatch = d
	} else {
		dispatch = make(map[string]interface{})
	}

	dispatch["mode"] = mode.String()
	settings["dispatch"] = dispatch

	return saveSettings(path, settings)
}

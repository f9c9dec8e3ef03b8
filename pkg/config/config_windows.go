//go:build windows

package config

import (
	"os"
	"path/filepath"
)

var (
	DefaultConfigPath      = filepath.Join(os.Getenv("AppData"), "defhost", "config.yml")
	DefaultJournalLocation = filepath.Join(os.Getenv("AppData"), "defhost", "journal.db")
)

func GetConfigFile() (config string, err error) {
	config = DefaultConfigPath
	if _, err := os.Stat(config); err != nil {
		if err = os.MkdirAll(filepath.Dir(config), 0o750); err != nil {
			return config, err
		}
		f, err := os.Create(filepath.Clean(config))
		if err != nil {
			return config, err
		}
		return config, f.Close()
	}
	return
}

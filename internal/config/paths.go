package config

import (
	"os"
	"path/filepath"
)

// xdgDir resolves an XDG base directory, falling back to home/rel and then
// to fallback when no home directory is known.
func xdgDir(env, rel, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, rel)
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"), "."), "intervue")
}

func uploadsDir(dataDir string) string {
	return filepath.Join(dataDir, "uploads")
}

// FilePath is the YAML settings file written by "intervue config set".
func FilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config", "."), "intervue", "config.yaml")
}

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from .env files.
//
// Search order (all existing files are loaded, earlier wins):
//  1. Explicit paths, if provided
//  2. .env in the current directory
//  3. .env in the home directory
//
// Existing environment variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path != "" {
			if err := loadIfExists(path); err != nil {
				return err
			}
		}
	}

	if err := loadIfExists(".env"); err != nil {
		return err
	}

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadIfExists(filepath.Join(home, ".env")); err != nil {
			return err
		}
	}

	return nil
}

// LoadDotEnvForConfig loads .env from the config file's directory.
func LoadDotEnvForConfig(configPath string) error {
	if configPath == "" {
		return nil
	}
	return loadIfExists(filepath.Join(filepath.Dir(configPath), ".env"))
}

func loadIfExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return err
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}

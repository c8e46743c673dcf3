// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config resolves the process configuration from the
// environment. A .env file in the working directory is honored when the
// serve command loads one before calling Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/luxfi/clawlet/pkg/constants"
)

type Config struct {
	// DemoMode disables every write operation on the tool surface.
	DemoMode bool
	// Port is the HTTP binding port.
	Port int
	// DataDir holds state.json; defaults to <cwd>/.clawlet.
	DataDir string
}

// Load reads DEMO_MODE, PORT, and CLAWLET_DATA_DIR.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("port", constants.DefaultHTTPPort)
	if err := v.BindEnv("demoMode", constants.DemoModeEnvVar); err != nil {
		return nil, err
	}
	if err := v.BindEnv("port", constants.PortEnvVar); err != nil {
		return nil, err
	}
	if err := v.BindEnv("dataDir", constants.DataDirEnvVar); err != nil {
		return nil, err
	}

	cfg := &Config{
		DemoMode: v.GetBool("demoMode"),
		Port:     v.GetInt("port"),
		DataDir:  v.GetString("dataDir"),
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.DataDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		cfg.DataDir = filepath.Join(cwd, constants.BaseDirName)
	}
	return cfg, nil
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const configFile = "config.yaml"

// FileConfig is the optional config.yaml in the state directory.
// Flags and environment variables take precedence over it.
type FileConfig struct {
	Server string `yaml:"server"`
	TZ     string `yaml:"tz"`
}

func loadFileConfig(stateDir string) (FileConfig, error) {
	var fc FileConfig
	raw, err := os.ReadFile(filepath.Join(stateDir, configFile))
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return fc, nil
}

// applyFileConfig fills options the user left at their defaults.
func applyFileConfig(cmd *cobra.Command, opts *RootOptions, fc FileConfig) {
	if fc.Server != "" && !flagChanged(cmd, "server") && os.Getenv("FRAGMENT_SERVER") == "" {
		opts.Server = fc.Server
	}
	if fc.TZ != "" && !flagChanged(cmd, "tz") && os.Getenv("FRAGMENT_TZ") == "" {
		opts.TZ = fc.TZ
	}
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dstolpe/dtaforge/internal/config"
)

// WriteSinkConfig rewrites the sink block of a freshly scaffolded
// project's dtaforge.yaml with the wizard's choices, keeping the
// attributes the template shipped with.
func WriteSinkConfig(targetPath, sinkType, schema string) error {
	if sinkType == "" {
		return nil
	}

	cfg, err := config.Load(targetPath)
	if err != nil {
		cfg = &config.ProjectConfig{}
	}
	cfg.Sink.Type = sinkType
	cfg.Sink.Schema = schema

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode project config: %w", err)
	}

	configPath := filepath.Join(targetPath, config.ConfigFileName)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	return nil
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/refiner/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = ".refiner/config.yaml"
	envPrefix         = "REFINER"
)

// resolveConfigPath makes path absolute against repoRoot. When the default
// YAML file is missing a sibling config.json is used instead.
func resolveConfigPath(repoRoot, path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	if path != filepath.Join(repoRoot, defaultConfigPath) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	alt := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if _, err := os.Stat(alt); err == nil {
		return alt
	}
	return path
}

func loadConfig(repoRoot string) (config.Config, error) {
	path := resolveConfigPath(repoRoot, viper.GetString("config"))
	viper.SetConfigFile(path)
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg := config.Default()
	if err := viper.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
		log.Debug().Str("path", path).Msg("no config file, using defaults")
	} else {
		if err := config.ValidateSettings(viper.AllSettings()); err != nil {
			return config.Config{}, fmt.Errorf("%s: %w", path, err)
		}
		if err := viper.Unmarshal(&cfg); err != nil {
			return config.Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if p := viper.GetString("profile"); p != "" {
		cfg.Profile = p
	}

	cfg.DBPath = inRepo(repoRoot, cfg.DBPath)
	if cfg.Source.Path != "" {
		cfg.Source.Path = inRepo(repoRoot, cfg.Source.Path)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func inRepo(repoRoot, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect refiner configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and role bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			selected, roles, err := cfg.ResolveRoles("")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s profile %s: planner=%s updater=%s creator=%s\n",
				StyleSuccess.Render("config ok"), StyleBold.Render(selected), roles.Planner, roles.Updater, roles.Creator)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			data, err := configYAML(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

// configYAML renders cfg with its snake_case keys. API keys are masked.
func configYAML(cfg config.Config) ([]byte, error) {
	agents := make(map[string]config.AgentConfig, len(cfg.Agents))
	for name, a := range cfg.Agents {
		if a.APIKey != "" {
			a.APIKey = "***"
		}
		agents[name] = a
	}
	cfg.Agents = agents
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

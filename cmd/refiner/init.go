package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed default_config.yaml
var defaultConfigYAML string

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize refiner in the current directory",
		Long:  "Initialize refiner by creating the .refiner directory and installing a default config.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			created, err := installDefaultConfig(repoRoot)
			if err != nil {
				return err
			}
			if !created {
				log.Info().Msg("config already exists, skipping")
			}
			fmt.Fprintln(cmd.OutOrStdout(), StyleSuccess.Render("refiner initialized"))
			return nil
		},
	}
}

// installDefaultConfig writes the default config unless one already exists.
func installDefaultConfig(repoRoot string) (bool, error) {
	configPath := filepath.Join(repoRoot, defaultConfigPath)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}
	log.Info().Str("path", configPath).Msg("installing default config")
	if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("write default config: %w", err)
	}
	return true, nil
}

package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"resume-builder/internal/shared/config"
)

func newTuningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tuning",
		Short: "Print the effective similarity and merge tuning as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(config.Load().Tuning)
		},
	}
}

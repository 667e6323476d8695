package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"resume-builder/internal/bootstrap"
	"resume-builder/internal/shared/config"
)

// loadApp builds the pipeline for one command. The CLI always ingests
// inline, so any configured queue is ignored.
func loadApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg := config.Load()
	store, _ := cmd.Flags().GetString("store")
	switch {
	case strings.TrimSpace(store) != "":
		cfg.Store = strings.ToLower(strings.TrimSpace(store))
	case strings.TrimSpace(os.Getenv("STORE")) == "" && cfg.DatabaseURL == "":
		cfg.Store = "sqlite"
	}
	app, err := bootstrap.Build(cmd.Context(), cfg, bootstrap.Options{SkipQueue: true})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

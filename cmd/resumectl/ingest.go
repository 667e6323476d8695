package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"resume-builder/internal/structured"
)

func newIngestCmd() *cobra.Command {
	var (
		userID   string
		filePath string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a resume file, or text from stdin when --file is -",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			if strings.TrimSpace(filePath) == "" {
				return fmt.Errorf("--file is required")
			}

			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if filePath == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				res, err := app.StructuredService.Ingest(cmd.Context(), string(raw), userID)
				if err != nil {
					return err
				}
				return writeJSON(cmd, structured.ToIngestResponse(res))
			}

			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("open %s: %w", filePath, err)
			}
			defer f.Close()

			res, err := app.DocumentsService.Upload(cmd.Context(), userID, filepath.Base(filePath), f)
			if err != nil {
				return err
			}
			if res.Ingest == nil {
				return fmt.Errorf("document %s was not ingested", res.Document.ID)
			}
			return writeJSON(cmd, structured.ToIngestResponse(*res.Ingest))
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner of the resume")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to a .pdf, .docx, .txt or .md resume, or - for stdin")
	return cmd
}

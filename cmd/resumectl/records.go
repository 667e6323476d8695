package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"resume-builder/internal/structured"
)

func newRecordsCmd() *cobra.Command {
	var (
		userID            string
		limit             int
		includeSuperseded bool
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List structured records of a user, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			recs, err := app.StructuredService.List(cmd.Context(), userID, structured.ListOptions{
				Limit:             limit,
				IncludeSuperseded: includeSuperseded,
			})
			if err != nil {
				return err
			}
			out := make([]structured.RecordResponse, 0, len(recs))
			for _, rec := range recs {
				out = append(out, structured.ToRecordResponse(rec))
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner of the records")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to list")
	cmd.Flags().BoolVar(&includeSuperseded, "all", false, "Include records folded into a merge")
	return cmd
}

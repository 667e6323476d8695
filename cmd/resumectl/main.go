// Command resumectl ingests resume files and inspects stored records without
// going through the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "resumectl",
		Short:         "Ingest resumes and inspect structured records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("store", "", "Record store: memory, sqlite or postgres (default from STORE, sqlite when unset)")
	root.AddCommand(newIngestCmd(), newRecordsCmd(), newTuningCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

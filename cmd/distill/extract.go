package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/distill/internal/config"
	"github.com/jackzampolin/distill/internal/ingest"
)

var extractCmd = &cobra.Command{
	Use:   "extract <schema.json> <document>",
	Short: "Extract structured data from a document",
	Long: `Extract structured data from a document using a JSON Schema.

The document may be plain text, markdown or PDF. The result includes the
extracted data, per-field confidence scores and a review queue of fields
needing human verification.

Examples:
  distill extract invoice.schema.json invoice.pdf
  distill extract person.schema.json notes.txt -o yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}

		schemaRaw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		document, err := ingest.ReadFile(args[1])
		if err != nil {
			return err
		}

		eng, err := newEngineFromConfig(mgr.Get(), logger)
		if err != nil {
			return err
		}

		res, err := eng.Extract(cmd.Context(), document, schemaRaw)
		if err != nil {
			return err
		}
		if err := printResult(res); err != nil {
			return err
		}
		if res.Failed() {
			return fmt.Errorf("extraction failed: no call succeeded")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

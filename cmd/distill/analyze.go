package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/distill/internal/config"
	"github.com/jackzampolin/distill/internal/schema"
)

// analyzeOutput mirrors the /analyze-schema response shape.
type analyzeOutput struct {
	Metrics  schema.ComplexityMetrics `json:"metrics"`
	Decision schema.StrategyDecision  `json:"decision"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <schema.json>",
	Short: "Analyze schema complexity and report the extraction strategy",
	Long: `Analyze a JSON Schema without issuing any LLM calls.

Reports depth, object and field counts, the estimated token cost, a
composite complexity score and the strategy the engine would pick,
including the chunk plan for schemas that exceed the chunking threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}

		schemaRaw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}

		eng, err := newEngineFromConfig(mgr.Get(), newLogger())
		if err != nil {
			return err
		}

		_, metrics, decision, err := eng.AnalyzeSchema(schemaRaw)
		if err != nil {
			return err
		}
		return printResult(analyzeOutput{Metrics: metrics, Decision: decision})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

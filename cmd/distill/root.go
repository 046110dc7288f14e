package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/distill/internal/config"
	"github.com/jackzampolin/distill/internal/engine"
	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/scorer"
	"github.com/jackzampolin/distill/version"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "distill",
	Short: "Schema-driven structured extraction from unstructured documents",
	Long: `Distill turns unstructured documents into structured JSON that conforms
to a user-supplied JSON Schema.

The pipeline includes:
  - Schema complexity analysis and automatic strategy selection
  - Document chunking with overlap for long inputs
  - Concurrent dependency-aware extraction calls
  - Deterministic merging of partial results
  - Confidence scoring with a human review queue`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.distill/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "json", "output format: json or yaml",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "warn", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the CLI logger honoring --log-level.
func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngineFromConfig wires a one-shot engine for CLI commands from the
// loaded configuration.
func newEngineFromConfig(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	registry := providers.NewRegistryFromConfig(cfg.ToProviderRegistryConfig())
	registry.SetLogger(logger)

	client, err := registry.Get(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}

	sc := scorer.New(scorer.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		FieldWeight:         cfg.Scoring.FieldWeight,
		CompletenessWeight:  cfg.Scoring.CompletenessWeight,
		ConsistencyWeight:   cfg.Scoring.ConsistencyWeight,
		SchemaValidWeight:   cfg.Scoring.SchemaValidWeight,
		RequiredFactor:      cfg.Scoring.RequiredFactor,
		OptionalMissing:     cfg.Scoring.OptionalMissing,
	})

	opts := []engine.Option{engine.WithLogger(logger)}
	if limiter := registry.Limiter(cfg.LLM.Provider); limiter != nil {
		opts = append(opts, engine.WithRateLimiter(limiter))
	}

	return engine.New(engine.Config{
		MaxTokensPerRequest:       cfg.MaxTokensPerRequest,
		DocumentChunkThreshold:    cfg.DocumentChunkThreshold,
		SchemaChunkThreshold:      cfg.SchemaChunkThreshold,
		OverlapTokens:             cfg.OverlapTokens,
		SinglePassDepthThreshold:  cfg.SinglePassDepthThreshold,
		SinglePassObjectThreshold: cfg.SinglePassObjectThreshold,
		MaxConcurrentCalls:        cfg.MaxConcurrentCalls,
		RequestTimeout:            cfg.RequestTimeout(),
		MaxRetries:                cfg.LLM.MaxRetries,
		RetryDelay:                cfg.RetryDelay(),
		Model:                     cfg.LLM.Model,
	}, client, sc, opts...), nil
}

// printResult renders v as JSON or YAML per --output. YAML goes through a
// JSON round trip so field names follow the json tags.
func printResult(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if outputFormat == "yaml" {
		var plain any
		if err := json.Unmarshal(data, &plain); err != nil {
			return err
		}
		out, err := yaml.Marshal(plain)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}

	fmt.Println(string(data))
	return nil
}

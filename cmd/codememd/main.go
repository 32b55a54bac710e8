// Package main is the entry point for the codememd CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codemem/engine"
	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/infrastructure/logging"
	"github.com/codemem/engine/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codememd",
		Short: "codemem retrieval engine",
		Long:  `codememd indexes source repositories and free-form memories and serves hybrid and structural queries over them.`,
	}
	cmd.AddCommand(indexCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// newEngine loads configuration, wires the process logger, and constructs
// the engine. The embedding collaborator is out of scope for this binary;
// a zero-vector stand-in keeps the lexical and structural surfaces usable
// without a model endpoint configured.
func newEngine() (*engine.Engine, error) {
	cfg, err := config.Load("CODEMEM")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Bootstrap(cfg.LogLevel)

	embedFn := func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = make([]float32, cfg.EmbeddingDimension)
		}
		return out, nil
	}

	eng, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithEmbedFunc(embedFn, cfg.EmbeddingModel, cfg.EmbeddingDimension),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return eng, nil
}

func indexCmd() *cobra.Command {
	var project string
	var recursive bool
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory into a project namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.IndexDirectory(cmd.Context(), project, args[0], recursive, func(processed, indexed, failed int) {
				fmt.Fprintf(os.Stderr, "\rprocessed %d (indexed %d, failed %d)", processed, indexed, failed)
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d, skipped %d, failed %d\n", report.Indexed, report.Skipped, report.Failed)
			for _, f := range report.Files {
				if f.Err != nil {
					fmt.Printf("  %s: %v\n", f.Path, f.Err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "default", "project namespace")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "walk subdirectories")
	return cmd
}

func searchCmd() *cobra.Command {
	var project string
	var k int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a hybrid search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			results, err := eng.Retrieve(cmd.Context(), args[0], search.New(search.WithProject(project)), k)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%.4f  [%s] %s\n", r.Score, r.Document.Category, firstLine(r.Document.Content))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "default", "project namespace")
	cmd.Flags().IntVarP(&k, "limit", "k", 10, "result count")
	return cmd
}

func statsCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print project statistics and pool metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			stats, err := eng.ProjectStats(cmd.Context(), project)
			if err != nil {
				return err
			}
			out := map[string]any{
				"stats":   stats,
				"pool":    eng.PoolMetrics(),
				"healthy": eng.Health(cmd.Context()).Healthy,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "default", "project namespace")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codememd %s (%s)\n", version, commit)
		},
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

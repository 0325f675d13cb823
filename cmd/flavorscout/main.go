package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flavorscout",
		Short:        "Mine consumer comments for the next supplement flavor",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(collectCmd())
	root.AddCommand(normalizeCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(recommendCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func collectCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect comments from the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to collect (e.g., reddit,rss,amazon)")
	return cmd
}

func normalizeCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Deduplicate, spam-filter, and tag a JSON file of raw comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(in, out)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "raw comments JSON file")
	cmd.Flags().StringVar(&out, "out", "", "cleaned comments output file (default: stdout)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func scoreCmd() *cobra.Command {
	var (
		in, out   string
		threshold float64
		days      int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank flavors from a JSON file of judgments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(in, out, threshold, days)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "judgments JSON file")
	cmd.Flags().StringVar(&out, "out", "", "write the full report as JSON to this file")
	cmd.Flags().Float64Var(&threshold, "threshold", -1, "reject threshold (default: from config)")
	cmd.Flags().IntVar(&days, "days", 0, "recency lookback in days (default: from config)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Judge new comments and rank flavors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func recommendCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Show the latest ranked recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd.Context(), jsonOutput, limit, threshold)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max flavors to show")
	cmd.Flags().Float64Var(&threshold, "threshold", -1, "reject threshold (default: from config)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

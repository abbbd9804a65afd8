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
		Use:          "creatorboard",
		Short:        "Score creators on topical content quality and rank them on a leaderboard",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(scoreCmd())
	root.AddCommand(leaderboardCmd())
	root.AddCommand(collectCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func scoreCmd() *cobra.Command {
	var (
		input      string
		jsonOutput bool
		details    bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score creators from a JSON file (demo data when no input is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), input, jsonOutput, details)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "JSON file with creators")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&details, "details", false, "include per-post details")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the latest stored leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd.Context(), jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")
	return cmd
}

func collectCmd() *cobra.Command {
	var (
		sources []string
		rescore bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run data collectors and store creators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), sources, rescore)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to collect (e.g., x,nitter,file,demo)")
	cmd.Flags().BoolVar(&rescore, "score", false, "score and save a leaderboard after collecting")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <status-link>...",
		Short: "Score the creators behind a set of x.com status links",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
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

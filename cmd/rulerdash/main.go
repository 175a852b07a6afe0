package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "rulerdash",
		Short: "Live dashboard for a streaming Golomb ruler solver",
		Long: `rulerdash connects to a solver's event stream, reconstructs what the
search is doing right now and keeps per-series histories of its progress.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rulerdash.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(watchCmd, solveCmd, exportCmd, archiveCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveShowCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	// Global flags
	configPath string
	jobs       int
	quiet      bool
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ferry",
		Short: "ferry — move files between storage backends",
		Long: `ferry copies files and directories between heterogeneous storage
backends (local disk, S3-compatible stores, SFTP hosts) through one
uniform interface. Directory transfers run concurrently and fail as a
whole: a partial directory never masquerades as a complete one.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 0, "Max concurrent transfers (0 = backend default)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(putCmd())
	rootCmd.AddCommand(lsCmd())
	rootCmd.AddCommand(rmCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

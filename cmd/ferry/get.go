package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ferryfs/ferry/internal/resource"
	"github.com/ferryfs/ferry/internal/transfer"
)

func getCmd() *cobra.Command {
	var fileOnly bool

	cmd := &cobra.Command{
		Use:   "get <source> <dest>",
		Short: "Download a file or directory from a remote",
		Long: `Download a file or directory from a remote backend to the local
filesystem. Directory downloads run concurrently; if any entry fails the
whole transfer fails and unstarted entries are skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args[0], args[1], fileOnly)
		},
	}

	cmd.Flags().BoolVar(&fileOnly, "file", false, "Treat the source as a single file, skipping the directory probe")

	return cmd
}

func runGet(src, dst string, fileOnly bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, from, err := openManager(cfg, src)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	to := resource.New(resource.SchemeLocal, filepath.ToSlash(abs))

	opts := transfer.DownloadOptions{NoProgress: quiet, Jobs: jobs}
	if fileOnly {
		if err := mgr.DownloadFile(context.Background(), from, to, opts); err != nil {
			return err
		}
	} else if err := mgr.Download(context.Background(), from, to, opts); err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("Downloaded %s -> %s\n", from, dst)
	}
	return nil
}

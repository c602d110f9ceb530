package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ferryfs/ferry/internal/resource"
	"github.com/ferryfs/ferry/internal/transfer"
)

func putCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <source> <dest>",
		Short: "Upload a local file to a remote",
		Long: `Upload a local file to a remote backend. Pass "-" as the source to
stream from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(args[0], args[1])
		},
	}

	return cmd
}

func runPut(src, dst string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, to, err := openManager(cfg, dst)
	if err != nil {
		return err
	}

	opts := transfer.UploadOptions{NoProgress: quiet}

	var source transfer.Source
	if src == "-" {
		source = transfer.ReaderSource(os.Stdin)
		opts.Desc = to.Name()
	} else {
		abs, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("failed to resolve source: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to stat source: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory; put uploads single files", src)
		}
		opts.Size = info.Size()
		source = transfer.PathSource(resource.New(resource.SchemeLocal, filepath.ToSlash(abs)))
	}

	if err := mgr.Upload(context.Background(), source, to, opts); err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("Uploaded %s -> %s\n", src, to)
	}
	return nil
}

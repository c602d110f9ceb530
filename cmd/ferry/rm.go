package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func rmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <url>",
		Short: "Remove a file or directory on a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRm(args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Ignore a missing target")

	return cmd
}

func runRm(url string, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fs, res, err := openFS(cfg, url)
	if err != nil {
		return err
	}

	ctx := context.Background()
	exists, err := fs.Exists(ctx, res)
	if err == nil && !exists {
		if force {
			return nil
		}
		return fmt.Errorf("%s does not exist", res)
	}

	if err := fs.Remove(ctx, res); err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("Removed %s\n", res)
	}
	return nil
}

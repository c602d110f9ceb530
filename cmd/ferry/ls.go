package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func lsCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls <url>",
		Short: "List the contents of a remote path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(args[0], long)
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show size and modification time")

	return cmd
}

func runLs(url string, long bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fs, res, err := openFS(cfg, url)
	if err != nil {
		return err
	}

	entries, err := fs.Ls(context.Background(), res, long)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if long && e.Info != nil {
			kind := "file"
			if e.Info.IsDir {
				kind = "dir"
			}
			fmt.Printf("%-4s %12d  %s  %s\n", kind, e.Info.Size,
				e.Info.Mtime.Format("2006-01-02 15:04:05"), e.Resource.Path())
		} else {
			fmt.Println(e.Resource.Path())
		}
	}
	return nil
}

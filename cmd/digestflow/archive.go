package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/archive"
)

var archiveList bool

var archiveCmd = &cobra.Command{
	Use:   "archive <out.tgz> [files...]",
	Short: "Bundle files into a gzipped tarball",
	Long: `Create out.tgz containing the given files under a single results/
directory. With --list, print the entries of an existing archive instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if archiveList {
			entries, err := archive.List(args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Println(e)
			}
			return nil
		}
		if len(args) < 2 {
			return fmt.Errorf("archive %s: no files given", args[0])
		}
		return archive.Create(args[0], args[1:])
	},
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveList, "list", false, "List the entries of an existing archive")
}

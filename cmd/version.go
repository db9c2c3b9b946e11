package cmd

import (
	"fmt"

	"github.com/smazurov/recordnode/internal/version"
	"github.com/spf13/cobra"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			info := version.Get()
			if !verbose {
				fmt.Println(info.Version)
				return
			}
			fmt.Printf("recordnode %s\n", info.Version)
			fmt.Printf("  commit:     %s\n", info.GitCommit)
			fmt.Printf("  built:      %s\n", info.BuildDate)
			fmt.Printf("  go version: %s\n", info.GoVersion)
			fmt.Printf("  platform:   %s\n", info.Platform)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print build metadata")
	return cmd
}

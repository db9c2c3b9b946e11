package main

import (
	"os"

	"github.com/smazurov/recordnode/cmd"
	"github.com/smazurov/recordnode/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "recordnode",
		Short:         "Live media recorder producing seekable MP4",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(cmd.CreateRecordCmd())
	root.AddCommand(cmd.CreateTranscodeCmd())
	root.AddCommand(cmd.CreateDevicesCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/smazurov/recordnode/internal/devices"
	"github.com/smazurov/recordnode/internal/logging"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available capture devices",
		RunE: func(_ *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			provider := devices.NewProvider()
			list, err := provider.List()
			if err != nil {
				return fmt.Errorf("enumerating devices: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tLABEL")
			for _, d := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Kind, d.Label)
			}
			return w.Flush()
		},
	}
}

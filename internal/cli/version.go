// internal/cli/version.go
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tracker version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": Version})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "tracker", Version)
			return err
		},
	}
}

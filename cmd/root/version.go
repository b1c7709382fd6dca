package root

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/docflowhq/docflow/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docflow version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "docflow version %s %s/%s\n", version.Version, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

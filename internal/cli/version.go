package cli

import (
	"github.com/spf13/cobra"

	"mdclip/internal/version"
)

func newVersionCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			env.printf("%s\n", version.String())
		},
	}
}

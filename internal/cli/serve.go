package cli

import (
	"github.com/spf13/cobra"

	"mdclip/internal/httpapi"
)

func newServeCmd(env *environment) *cobra.Command {
	opts := httpapi.Options{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the article panel API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			return httpapi.NewServer(a, env.log, opts).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "Listen address")
	cmd.Flags().IntVar(&opts.Port, "port", 8765, "Listen port")
	cmd.Flags().StringSliceVar(&opts.AllowOrigins, "allow-origin", nil, "CORS origins allowed to call the API (default: any)")
	return cmd
}

package cli

import (
	"github.com/glimps-re/defhost/pkg/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the Defender operations on a local JSON API",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := server.New(server.Config{
			Defender:       hostServices.defender,
			Cleaner:        hostServices.cleaner,
			Journal:        hostServices.journal,
			AllowedOrigins: hostConfig.Server.AllowedOrigins,
		})
		return s.ListenAndServe(cmd.Context(), hostConfig.Server.Listen)
	},
}

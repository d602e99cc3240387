package cmd

import (
	"github.com/spf13/cobra"

	"worker-preprocess/config"
	server2 "worker-preprocess/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start the preprocessing worker and intake server",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}

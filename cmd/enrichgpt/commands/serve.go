package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/enrichgpt/internal/server"
	"github.com/jmylchreest/enrichgpt/pkg/estimate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the token estimate endpoint",
	Long: `Serve HTTP routes used by configuration forms:

  POST /-/enrichments-gpt/estimate   form: template, system_prompt,
                                     filter_querystring, model
  GET  /-/enrichments-gpt/models     supported models`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8001", "listen address")
	_ = viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(_ *cobra.Command, _ []string) error {
	setupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.New(viper.GetString("addr"), estimate.NewTiktokenCounter()).Run(ctx)
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorgraph/internal/server"
)

var httpAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP traversal API",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, logger, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		addr := cfg.HTTPAddr
		if httpAddr != "" {
			addr = httpAddr
		}
		srv := server.NewServer(eng, addr, logger)

		shutdownChan := make(chan os.Signal, 1)
		signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Run() }()

		select {
		case <-shutdownChan:
			logger.Info("Shutdown signal received")
		case err := <-errCh:
			if err != nil {
				return err
			}
		}
		srv.Shutdown()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "http-addr", "", "Override the configured listen address (e.g. :9094)")
}

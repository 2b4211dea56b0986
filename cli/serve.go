package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	otlp_util "github.com/bluexlab/otlp-util-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/georgepadayatti/pkixpath/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve path validation and path building over HTTP",
		Long: `Serve path validation and path building over HTTP.

Endpoints:
  GET  /health
  POST /api/v1/validate   explicit path, target first
  POST /api/v1/build      target plus optional intermediates

Trust anchors, stores and validation parameters come from the configuration
file; requests may add certificates and CRLs of their own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("address") {
				cfg.Server.Address = address
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if endpoint := cfg.Telemetry.OTLPEndpoint; endpoint != "" {
				exporter, err := otlp_util.InitExporter(
					otlp_util.WithContext(ctx),
					otlp_util.WithEndPoint(endpoint),
					otlp_util.WithServiceName(cfg.Telemetry.ServiceName),
					otlp_util.WithInSecure(),
					otlp_util.WithErrorHandler(func(err error) {
						logrus.Warnf("OTLP error: %v", err)
					}),
				)
				if err != nil {
					logrus.Errorf("failed to initialize OTLP exporter: %v", err)
					return err
				}
				defer func() { _ = exporter.Shutdown(context.Background()) }()
			}

			opts, err := cfg.ValidationOptions(logrus.StandardLogger())
			if err != nil {
				return err
			}
			server, err := api.NewAPI(api.Config{
				Address:      cfg.Server.Address,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				Version:      Version,
				Options:      opts,
				Logger:       logrus.StandardLogger(),
			})
			if err != nil {
				logrus.Errorf("failed to create API server: %v", err)
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				logrus.Infof("listening on %s", cfg.Server.Address)
				errCh <- server.Run()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logrus.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Close(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Listen address (default from configuration, :8080)")
	return cmd
}

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		server := a.server()

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("starting http",
				zap.String("addr", cfg.HTTP.Addr),
				zap.String("package", string(a.client.Tier)),
				zap.Bool("store", a.store != nil),
				zap.Bool("chat_model", a.chat.ModelConfigured()),
			)
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			a.log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server exited", zap.Error(err))
			}
		}

		grace := cfg.HTTP.ShutdownGrace
		if grace <= 0 {
			grace = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

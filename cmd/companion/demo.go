package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambienthealth/companion/internal/demoserver"
)

func demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the in-memory demo service",
	}
	cmd.AddCommand(demoServeCmd())
	return cmd
}

func demoServeCmd() *cobra.Command {
	var addr string
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo service",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = app.cfg.DemoAddr
			}

			srv := demoserver.New(app.cfg.DemoSecret, app.log)
			if seed {
				if err := srv.Seed(); err != nil {
					return err
				}
			}

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			app.log.Info().Msg("demo server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to DEMO_ADDR)")
	cmd.Flags().BoolVar(&seed, "seed", true, "seed the demo accounts")
	return cmd
}

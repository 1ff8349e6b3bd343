package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ambienthealth/companion/internal/api"
	"github.com/ambienthealth/companion/internal/config"
	"github.com/ambienthealth/companion/internal/model"
	"github.com/ambienthealth/companion/internal/session"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "companion",
		Short: "Consultation companion client",
	}

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(demoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the pieces every command needs: configuration, logger, the
// API client and the session manager over the persisted token.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	client  *api.Client
	session *session.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	client, err := api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	mgr := session.NewManager(client, session.NewFileTokenStore(cfg.TokenPath), logger)

	return &app{cfg: cfg, log: logger, client: client, session: mgr}, nil
}

// restore replays the persisted token and returns the confirmed user, or an
// error telling the caller to log in.
func (a *app) restore(ctx context.Context) (*model.User, error) {
	if err := a.session.Restore(ctx); err != nil {
		return nil, err
	}
	if a.session.State() != session.Authenticated {
		return nil, fmt.Errorf("not logged in; run \"companion login\" first")
	}
	return a.session.User(), nil
}

// requireRole is restore plus a role check.
func (a *app) requireRole(ctx context.Context, role model.Role) (*model.User, error) {
	user, err := a.restore(ctx)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		return nil, fmt.Errorf("this command needs a %s account; you are logged in as %s", role, user.Role)
	}
	return user, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/api"
	"github.com/taskmaster-ai/taskmaster/internal/auth"
)

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.HTTPPort = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Override HTTP_PORT")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.RequireAuth(); err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(a.cfg.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		return err
	}

	svc, err := a.services(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	handler := api.NewAPIHandler(svc.Tasks, svc.Breakdown, issuer,
		api.Credentials{User: a.cfg.AdminUser, Password: a.cfg.AdminPassword},
		a.logger.Named("api"))

	serverAddr := fmt.Sprintf(":%s", a.cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // agent runs with several tool rounds can be slow
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server, press Ctrl+C to quit", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	case <-ctx.Done():
	}
	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("server exited gracefully")
	return nil
}

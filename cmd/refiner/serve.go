package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/metalagman/refiner/internal/config"
	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/review"
	"github.com/metalagman/refiner/internal/source"
	"github.com/metalagman/refiner/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			app := fx.New(serverModule(cfg))
			if err := app.Err(); err != nil {
				return err
			}
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.Stop(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// serverModule wires the HTTP server and everything behind it.
func serverModule(cfg config.Config) fx.Option {
	return fx.Options(
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
		fx.Supply(cfg),
		fx.Provide(
			provideStore,
			provideSource,
			newInvoker,
			newReviewService,
			provideWebServer,
			provideHTTPServer,
		),
		fx.Invoke(func(*http.Server) {}),
	)
}

func provideStore(lc fx.Lifecycle, cfg config.Config) (*db.Store, error) {
	handle, err := db.Open(context.Background(), cfg.DBPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(handle.Close))
	return db.NewStore(handle), nil
}

func provideSource(lc fx.Lifecycle, cfg config.Config, store *db.Store) (source.Source, error) {
	src, closeFn, err := source.Open(context.Background(), cfg.Source, store)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(closeFn))
	return src, nil
}

func provideWebServer(svc *review.Service, store *db.Store) (*web.Server, error) {
	return web.NewServer(svc, store)
}

func provideHTTPServer(lc fx.Lifecycle, cfg config.Config, srv *web.Server) *http.Server {
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("http server shutting down")
			return server.Shutdown(ctx)
		},
	})
	return server
}

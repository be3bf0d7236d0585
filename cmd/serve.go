package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timada-org/todos/internal/api"
	"github.com/timada-org/todos/internal/auth"
	"github.com/timada-org/todos/internal/core"
	"github.com/timada-org/todos/internal/events"
	"github.com/timada-org/todos/internal/sse"
	"github.com/timada-org/todos/internal/store"
	"github.com/timada-org/todos/internal/todo"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the todos server",

	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.NewConfig(cfgFile)
		if err != nil {
			return err
		}

		logger := core.NewLogger(config.Log)

		db, err := openDatabase(config)
		if err != nil {
			return err
		}
		defer store.Close(db)

		sseServer := sse.New()
		bus := events.NewBus(sseServer)

		var publisher todo.Publisher = bus

		if config.Broker.URL != "" {
			broker, err := events.NewBroker(events.BrokerOptions{
				URL:          config.Broker.URL,
				Topic:        config.Broker.Topic,
				Subscription: config.Broker.Subscription,
				Bus:          bus,
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			defer broker.Close()

			broker.Start()
			publisher = broker
		}

		ttl, err := config.SessionTTL()
		if err != nil {
			return err
		}

		rememberTTL, err := config.RememberTTL()
		if err != nil {
			return err
		}

		authOptions := auth.Options{
			DB:          db,
			Secret:      []byte(config.Session.Secret),
			TTL:         ttl,
			RememberTTL: rememberTTL,
		}

		if config.Auth.JwksURL != "" {
			jwks, err := auth.NewJWKS(config.Auth.JwksURL, logger)
			if err != nil {
				return err
			}
			defer jwks.EndBackground()

			authOptions.External = jwks.Keyfunc
			authOptions.ExternalIssuer = config.Auth.Issuer
			authOptions.ExternalAudience = config.Auth.Audience
		}

		app, err := api.New(api.Options{
			Addr:         config.Addr,
			Todos:        todo.NewService(todo.NewRepository(db), publisher, logger),
			Auth:         auth.NewProvider(authOptions),
			Bus:          bus,
			SSE:          sseServer,
			CookieName:   config.Session.CookieName,
			SecureCookie: config.Session.Secure,
			Logger:       logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errs := make(chan error, 1)
		go func() {
			errs <- app.Listen()
		}()

		select {
		case err := <-errs:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return app.Shutdown(shutdownCtx)
	},
}

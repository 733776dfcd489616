package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pillsync/internal/adapters/auth/jwt"
	"pillsync/internal/adapters/bus/kafka"
	"pillsync/internal/adapters/content/remote"
	dedupredis "pillsync/internal/adapters/dedup/redis"
	"pillsync/internal/adapters/gateway/mqtt"
	"pillsync/internal/adapters/sms/sqs"
	pg "pillsync/internal/adapters/storage/postgres"
	"pillsync/internal/app"
	"pillsync/internal/config"
	"pillsync/internal/domain/schedule"
	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/auth"
	"pillsync/internal/router"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pillsync",
		Short: "PillSync API: pastillero, dosis, alarmas y cuidadores",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(nextDoseCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var demoOwner string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP y el heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(demoOwner)
		},
	}
	cmd.Flags().StringVar(&demoOwner, "demo-owner", "demo-user", "Owner del paciente de demo (SEED_DEMO=true)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el schema de Postgres (DB_DSN)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.DBDSN) == "" {
				return errors.New("DB_DSN is required")
			}

			db, err := pg.Open(cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			if err := pg.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func nextDoseCmd() *cobra.Command {
	var (
		times string
		at    string
	)
	cmd := &cobra.Command{
		Use:   "next-dose",
		Short: "Calcula la próxima dosis para una lista de horarios",
		Example: "  pillsync next-dose --times 08:00,20:00 --at 2026-10-19T21:30\n" +
			"  pillsync next-dose --times 09:00",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if strings.TrimSpace(at) != "" {
				t, err := time.ParseInLocation("2006-01-02T15:04", at, time.Local)
				if err != nil {
					return fmt.Errorf("--at must be YYYY-MM-DDTHH:MM: %w", err)
				}
				now = t
			}

			list := strings.Split(times, ",")
			fmt.Fprintln(cmd.OutOrStdout(), schedule.NextDose(list, now))
			if next, ok := schedule.NextDoseAt(list, now); ok {
				fmt.Fprintln(cmd.OutOrStdout(), next.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&times, "times", "", "Horarios separados por coma (HH:MM o ISO)")
	cmd.Flags().StringVar(&at, "at", "", "Hora de referencia (default: ahora)")
	_ = cmd.MarkFlagRequired("times")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Firma un bearer token con JWT_SECRET (para pruebas manuales)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			v, err := jwt.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
			if err != nil {
				return err
			}
			tok, err := v.Sign(userID, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (sub)")
	cmd.Flags().StringVar(&email, "email", "", "Email opcional")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Vigencia del token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runServer(demoOwner string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{
		Log:               log,
		SlotCount:         cfg.SlotCount,
		HeartbeatInterval: cfg.HeartbeatInterval,
		AlarmTimeout:      cfg.AlarmTimeout,
		SuccessDelay:      cfg.SuccessDelay,
	}
	closers, err := wireAdapters(ctx, cfg, log, &opts)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	if err != nil {
		return err
	}

	a := app.New(opts)
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("app close failed", map[string]any{"err": err})
		}
	}()

	if cfg.SeedDemo {
		if err := a.SeedDemo(ctx, demoOwner); err != nil {
			log.Warn("demo seed failed", map[string]any{"err": err})
		}
	}

	var verifier auth.AuthVerifier // nil = modo dev (X-Debug-User-ID)
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		v, err := jwt.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return err
		}
		verifier = v
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(router.Options{AuthVerifier: verifier, App: a}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// defers LIFO: el heartbeat termina antes que a.Close y los closers
	stopHeartbeat := a.StartHeartbeat(ctx)
	defer stopHeartbeat()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "env": cfg.Env, "auth": verifier != nil})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// wireAdapters conecta los adapters reales que estén configurados. Lo que no
// tenga config queda nil y app.New usa la variante in-process.
func wireAdapters(ctx context.Context, cfg *config.Config, log logger.Logger, opts *app.Options) ([]func(), error) {
	closers := make([]func(), 0)

	if dsn := strings.TrimSpace(cfg.DBDSN); dsn != "" {
		db, err := pg.Open(dsn)
		if err != nil {
			return closers, fmt.Errorf("open db: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := pg.Migrate(ctx, db); err != nil {
			return closers, err
		}
		opts.DB = db
		log.Info("storage: postgres", nil)
	} else {
		log.Info("storage: memory", nil)
	}

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client, err := dedupredis.Connect(ctx, addr, cfg.RedisDB)
		if err != nil {
			return closers, err
		}
		closers = append(closers, func() { _ = client.Close() })
		opts.Claims = dedupredis.NewClaimer(client)
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		opts.Bus = kafka.NewPublisher(brokers, cfg.KafkaTopic)
	}

	if broker := strings.TrimSpace(cfg.MQTTBroker); broker != "" {
		gw, err := mqtt.Connect(log, mqtt.Options{Broker: broker, ClientID: cfg.MQTTClientID})
		if err != nil {
			return closers, err
		}
		closers = append(closers, gw.Close)
		opts.Gateway = gw
	}

	if queue := strings.TrimSpace(cfg.SMSQueueURL); queue != "" {
		sender, err := sqs.NewFromEnv(ctx, queue)
		if err != nil {
			return closers, err
		}
		opts.SMS = sender
	}

	if docURL := strings.TrimSpace(cfg.LessonsDocumentURL); docURL != "" {
		src, err := remote.New(docURL, 0)
		if err != nil {
			return closers, err
		}
		opts.Content = src
	}

	return closers, nil
}

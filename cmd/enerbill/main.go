package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/enerbill/internal/api"
	"github.com/bher20/enerbill/internal/auth"
	"github.com/bher20/enerbill/internal/config"
	"github.com/bher20/enerbill/internal/cron"
	"github.com/bher20/enerbill/internal/migrate"
	"github.com/bher20/enerbill/internal/notification"
	"github.com/bher20/enerbill/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "enerbill",
		Short:        "Energy billing service: time-of-use pricing for hourly meter readings",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), migrateCmd(), workerCmd(), batchCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.AutoMigrate {
				if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
					log.Printf("auto-migration failed: %v", err)
				}
			}

			st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer st.Close()

			var authSvc *auth.Service
			if os.Getenv("ENERBILL_AUTH_DISABLED") != "true" {
				authSvc, err = auth.NewService(st)
				if err != nil {
					return fmt.Errorf("init auth: %w", err)
				}
			}
			notifSvc := notification.NewService(st)

			mux := api.NewMux(st, authSvc, notifSvc)

			addr := ":" + cfg.Port
			srv := &http.Server{Addr: addr, Handler: mux}

			go func() {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
				<-sig
				shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutCtx)
			}()

			log.Printf("enerbill listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Run database migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch args[0] {
			case "up":
				return migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN)
			case "down":
				return migrate.Down(ctx, cfg.DBDriver, cfg.DBDSN)
			case "status":
				return migrate.Status(ctx, cfg.DBDriver, cfg.DBDSN)
			default:
				return fmt.Errorf("unknown migrate action %q", args[0])
			}
		},
	}
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the bill snapshot worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = cron.Run(ctx, cfg.DBDriver, cfg.DBDSN, cfg.CronInterval)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func batchCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the bulk reading ingest worker (Postgres only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = cron.RunBatch(ctx, cfg.DBDSN, dir)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "drop directory with reading CSV exports")
	return cmd
}

func seedCmd() *cobra.Command {
	var (
		username string
		password string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer st.Close()

			authSvc, err := auth.NewService(st)
			if err != nil {
				return err
			}
			u, err := authSvc.Register(ctx, username, password, "admin", 1)
			if err != nil {
				return err
			}
			fmt.Printf("created admin user %s (id %s)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}

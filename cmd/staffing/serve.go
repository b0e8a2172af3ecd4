package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monocle-dev/staffing/db"
	"github.com/monocle-dev/staffing/internal/assignments"
	"github.com/monocle-dev/staffing/internal/attrs"
	"github.com/monocle-dev/staffing/internal/auth"
	"github.com/monocle-dev/staffing/internal/config"
	"github.com/monocle-dev/staffing/internal/handlers"
	"github.com/monocle-dev/staffing/internal/router"
	"github.com/monocle-dev/staffing/internal/scheduler"
	"github.com/monocle-dev/staffing/internal/services"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// connect loads the configuration and opens and migrates the database.
func connect() (*config.Config, error) {
	cfg, err := config.Load()

	if err != nil {
		return nil, err
	}

	if err := db.ConnectDatabase(cfg.Database); err != nil {
		return nil, err
	}

	if err := db.MigrateDatabase(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newAssignmentRepository() *assignments.Repository {
	return assignments.New(db.DB,
		assignments.WithPivot(attrs.AssignedBy, attrs.AssignedAt, attrs.Role, attrs.DeletedAt),
		assignments.WithTimestamps(),
	)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := connect()

			if err != nil {
				return err
			}

			if err := auth.InitJWTSecret(cfg.JWTSecret); err != nil {
				return err
			}

			hub := handlers.NewHub(cfg.Origins())
			notifier := services.NewNotifier(cfg.SlackWebhookURL, cfg.DiscordWebhookURL)
			service := services.NewAssignmentService(db.DB, newAssignmentRepository(), hub, notifier)

			if err := scheduler.Initialize(service, cfg.PruneSchedule, cfg.PruneRetention); err != nil {
				return err
			}
			defer scheduler.Shutdown()

			sqlDB, err := db.DB.DB()

			if err != nil {
				return err
			}

			r := router.NewRouter(router.Dependencies{
				Config:      cfg,
				Pinger:      sqlDB,
				Assignments: service,
				Hub:         hub,
			})

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errs := make(chan error, 1)
			go func() {
				log.Printf("Listening on :%s", cfg.Port)
				errs <- srv.ListenAndServe()
			}()

			select {
			case err := <-errs:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Println("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		},
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/urbangroup/botflow"
	"github.com/urbangroup/botflow/internal/adapters/file"
	httpadapter "github.com/urbangroup/botflow/internal/adapters/http"
	"github.com/urbangroup/botflow/internal/metrics"
	"github.com/urbangroup/botflow/pkg/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the script editor and conversation API server",
	Long: `Starts the HTTP server exposing script CRUD with graph compilation,
session handling and the diagnostics view.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		scriptsDir, _ := cmd.Flags().GetString("scripts")
		sessionTTL, _ := cmd.Flags().GetDuration("session-ttl")
		redisAddr, _ := cmd.Flags().GetString("redis")
		redisPassword, _ := cmd.Flags().GetString("redis-password")
		redisDB, _ := cmd.Flags().GetInt("redis-db")

		logger := commandLogger(cmd)
		m := metrics.New()

		opts := []botflow.Option{
			botflow.WithLogger(logger),
			botflow.WithSessionTTL(sessionTTL),
			botflow.WithEngineOptions(engine.WithEventHook(m.EventHook())),
		}
		if redisAddr != "" {
			opts = append(opts, botflow.WithRedis(redisAddr, redisPassword, redisDB))
		}

		app, err := botflow.New(opts...)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if scriptsDir != "" {
			loaded, err := file.LoadDir(scriptsDir)
			if err != nil {
				return fmt.Errorf("load scripts from %s: %w", scriptsDir, err)
			}
			for _, sc := range loaded {
				if err := app.Scripts.Put(ctx, sc); err != nil {
					return fmt.Errorf("store script %s: %w", sc.ID, err)
				}
			}
			logger.Info("scripts loaded", "dir", scriptsDir, "count", len(loaded))
		}

		api := httpadapter.NewServer(app.Scripts, app.Sessions, app.Engine,
			httpadapter.WithLogger(logger))

		root := chi.NewRouter()
		root.Handle("/metrics", m.Handler())
		root.Mount("/", api.Handler(m.Middleware))

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: root,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", srv.Addr, "redis", redisAddr != "")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return err
				}
			}
			logger.Info("server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("scripts", "", "Directory of script files to load on startup")
	serveCmd.Flags().Duration("session-ttl", 30*time.Minute, "Session inactivity window")
}

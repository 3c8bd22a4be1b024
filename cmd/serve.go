package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpHdlr "adwise/handler/http"
	"adwise/src/core/connection"
	"adwise/src/infrastructure/events"
	"adwise/src/log"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API",
	Long: `The serve command starts an HTTP server exposing the job, artifact,
distribution and connection operations. It resumes the persisted job on start
and refreshes the connection record in the background.`,
	RunE: RunServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	// Pick up a job left by a previous run
	if err := rt.coordinator.Resume(); err != nil {
		log.Error(err, "Failed to resume persisted job")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	rt.tracker.Start(ctx, func(record connection.Record) {
		log.Info("Connection record", "record", record, "allConnected", record.AllConnected())
	})

	// Journal every published event when a bus is configured
	var router *message.Router
	if rt.bus.Enabled() {
		router, err = events.NewJournal(rt.bus.Subscriber, rt.wmLogger, func(topic string, msg *message.Message) error {
			log.Info("Event", "topic", topic, "id", msg.UUID, "payload", string(msg.Payload))
			return nil
		})
		if err != nil {
			return err
		}
		go func() {
			if err := router.Run(ctx); err != nil {
				log.Error(err, "Event journal stopped")
			}
		}()
	}

	// Initialize HTTP handler
	handler := httpHdlr.NewHandler(rt.coordinator, rt.archiver, rt.dispatcher, rt.tracker, rt.archiving)

	// Setup gin router
	r := gin.Default()

	// Register routes
	handler.RegisterRoutes(r)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
			stop()
		}
	}()
	log.Info("Server listening", "addr", srv.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	timeout := viper.GetDuration("server.shutdown_timeout")
	if timeout <= 0 {
		log.Info("Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	// Create context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	if router != nil {
		if err := router.Close(); err != nil {
			log.Error(err, "Error closing event journal")
		}
	}

	log.Info("Server exited")
	return nil
}

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

	"github.com/fortuna/diamond/internal/api/rest"
	"github.com/fortuna/diamond/internal/api/websocket"
	"github.com/fortuna/diamond/internal/backfill"
	"github.com/fortuna/diamond/internal/cache"
	"github.com/fortuna/diamond/internal/logger"
	"github.com/fortuna/diamond/internal/metrics"
	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/publisher"
	"github.com/fortuna/diamond/internal/scheduler"
	"github.com/fortuna/diamond/internal/store/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the normalization service",
	Long: `Run the job worker, daily scheduler, REST API and WebSocket feed.
Jobs are enqueued over REST or by the scheduler and processed one at a time.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Printf("Starting %s v%s - baseball normalization service", serviceName, serviceVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rc, err := openCache(ctx)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}

	recorder := metrics.NewRecorder()
	wsServer := websocket.NewServer()
	observers := []normalize.Observer{recorder, wsServer}
	if rc != nil {
		observers = append(observers,
			publisher.NewRedisStreamPublisher(rc.Client(), nil),
			cache.NewStatusInvalidator(rc),
		)
	}

	games := repository.NewGameRepository(db)
	driver, err := newDriver(games, observers...)
	if err != nil {
		return err
	}

	runner := backfill.NewRunner(newFeedClient(rc), driver)
	jobs := backfill.NewService(db, runner, logger.Standard(rootLog, "backfill"))
	jobs.Start()
	log.Println("✓ Job worker started")

	sched, err := scheduler.NewOrchestrator(jobs, &scheduler.Config{
		DailyCron:            cfg.Scheduler.Cron,
		Location:             cfg.Location(),
		EnableDailyIngestion: cfg.Scheduler.Enabled,
		MaxRetries:           3,
		RetryDelay:           5 * time.Second,
	})
	if err != nil {
		return err
	}
	sched.Start()

	deps := rest.Deps{
		Jobs:    jobs,
		Games:   games,
		States:  driver,
		Metrics: recorder.Handler(),
		Health: map[string]func(context.Context) error{
			"postgres": func(context.Context) error { return db.HealthCheck() },
		},
	}
	if rc != nil {
		deps.Cache = rc
		deps.Health["redis"] = rc.HealthCheck
	}
	restServer := rest.NewServer(cfg.Server.RESTPort, deps)

	errCh := make(chan error, 2)
	go func() {
		if err := restServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("rest server: %w", err)
		}
	}()
	log.Printf("✓ REST API listening on :%s", cfg.Server.RESTPort)

	go func() {
		if err := wsServer.Start(cfg.Server.WSPort); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("websocket server: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigChan:
	case runErr = <-errCh:
	}

	log.Println("Shutting down gracefully...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST API server shutdown error: %v", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WebSocket server shutdown error: %v", err)
	}
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		log.Printf("Job worker shutdown error: %v", err)
	}

	log.Printf("%s stopped", serviceName)
	return runErr
}

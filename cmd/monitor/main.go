package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/autofail"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/internal/workerhealth"
)

const version = "1.0.0"

// main hosts C9 and C10 together: two independent sweep loops over the
// same database connection, neither of which talks to the task queue,
// so neither earns its own process.
func main() {
	log.Printf("Starting workflow orchestrator monitor v%s", version)

	dbCfg := &storage.Config{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        getEnv("DB_PORT", "5432"),
		User:        getEnv("DB_USER", "workflow"),
		Password:    getEnv("DB_PASSWORD", "workflow_dev_password"),
		DBName:      getEnv("DB_NAME", "workflow_orchestrator"),
		SSLMode:     getEnv("DB_SSLMODE", "disable"),
		MaxConns:    10,
		MinConns:    2,
		MaxIdleTime: 5 * time.Minute,
		MaxLifetime: 30 * time.Minute,
	}

	db, err := storage.NewDB(dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	runRepo := storage.NewRunRepository(db.DB)
	deferredRepo := storage.NewDeferredEmailRepository(db.DB)
	workerRepo := storage.NewWorkerRepository(db.DB)

	maxAge := getEnvDuration("RUN_MAX_AGE", 4*time.Hour)
	grace := getEnvDuration("DEFERRED_GRACE", 30*time.Minute)
	heartbeatTimeout := getEnvDuration("WORKER_HEARTBEAT_TIMEOUT", 15*time.Second)

	autofailMon := autofail.New(runRepo, deferredRepo, maxAge, grace)
	healthMon := workerhealth.New(workerRepo, heartbeatTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go autofailMon.Run(ctx)
	go healthMon.Run(ctx)
	log.Println("auto-fail and worker-health monitors running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("received signal %v, shutting down", sig)
	cancel()

	log.Println("monitor stopped")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

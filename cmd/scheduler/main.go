package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/dispatcher"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/scheduler"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
)

const version = "1.0.0"

// main runs C7: a single reconciling scheduler keeping one cron/interval
// timer alive per active DAG and firing CreateRun when a schedule is due.
func main() {
	log.Printf("Starting workflow orchestrator scheduler v%s", version)

	dbCfg := &storage.Config{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        getEnv("DB_PORT", "5432"),
		User:        getEnv("DB_USER", "workflow"),
		Password:    getEnv("DB_PASSWORD", "workflow_dev_password"),
		DBName:      getEnv("DB_NAME", "workflow_orchestrator"),
		SSLMode:     getEnv("DB_SSLMODE", "disable"),
		MaxConns:    25,
		MinConns:    5,
		MaxIdleTime: 5 * time.Minute,
		MaxLifetime: 30 * time.Minute,
	}

	db, err := storage.NewDB(dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	dagRepo := storage.NewDAGRepository(db.DB)
	runRepo := storage.NewRunRepository(db.DB)

	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	q, err := queue.NewNATSQueue(natsURL)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer q.Close()

	disp := dispatcher.New(dagRepo, runRepo, q)
	sched := scheduler.New(dagRepo, disp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	log.Println("scheduler reconciling active DAGs")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("received signal %v, shutting down", sig)
	cancel()

	log.Println("scheduler stopped")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

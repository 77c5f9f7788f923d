package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harshitdeora/task-schedular-sub000/internal/credentials"
	"github.com/harshitdeora/task-schedular-sub000/internal/crypto"
	"github.com/harshitdeora/task-schedular-sub000/internal/dispatcher"
	"github.com/harshitdeora/task-schedular-sub000/internal/eventbus"
	"github.com/harshitdeora/task-schedular-sub000/internal/executor"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/state"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/internal/worker"
)

const version = "1.0.0"

// main runs C5: one task-message consumer dispatching to the C4 executor
// registry. Scale out by running multiple instances of this binary
// against the same NATS queue group and Postgres database.
func main() {
	log.Printf("Starting workflow orchestrator worker v%s", version)

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
	workerRepo := storage.NewWorkerRepository(db.DB)
	deferredRepo := storage.NewDeferredEmailRepository(db.DB)

	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	q, err := queue.NewNATSQueue(natsURL)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer q.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379")),
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("warning: failed to connect to Redis, task/run updates will not cross process boundaries: %v", err)
	}
	bus := eventbus.NewRedisBus(redisClient)

	disp := dispatcher.New(dagRepo, runRepo, q)
	reconciler := state.NewReconciler(runRepo, dagRepo, bus)

	encryptionKey := crypto.DeriveKey(getEnv("CREDENTIAL_PASSPHRASE", "change-me-in-production"))
	creds, err := credentials.NewEnvProvider()
	if err != nil {
		log.Fatalf("failed to configure SMTP credentials: %v", err)
	}

	registry := executor.NewRegistry()
	registry.Register(executor.NewHTTPExecutor())
	registry.Register(executor.NewEmailExecutor(creds, deferredRepo, encryptionKey))
	registry.Register(executor.NewDatabaseExecutor(getEnv("TASK_DB_DSN", "")))
	registry.Register(executor.NewScriptExecutor(getEnv("SCRIPT_WORKDIR", os.TempDir())))
	registry.Register(executor.NewFileExecutor())
	registry.Register(executor.NewWebhookExecutor())
	registry.Register(executor.NewDelayExecutor())
	registry.Register(executor.NewNotificationExecutor())
	registry.Register(executor.NewTransformExecutor())

	w := worker.New(q, registry, dagRepo, runRepo, workerRepo, disp, reconciler, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down", sig)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Printf("worker stopped with error: %v", err)
		}
	}

	log.Println("worker stopped")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

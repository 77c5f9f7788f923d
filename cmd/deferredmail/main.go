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
	"github.com/harshitdeora/task-schedular-sub000/internal/deferredmail"
	"github.com/harshitdeora/task-schedular-sub000/internal/dispatcher"
	"github.com/harshitdeora/task-schedular-sub000/internal/eventbus"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/state"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
)

const version = "1.0.0"

// main runs C8: the once-a-minute sweep that sends deferred emails whose
// fireAt has arrived and reopens their run's completion decision.
func main() {
	log.Printf("Starting workflow orchestrator deferred-mail watchdog v%s", version)

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

	dagRepo := storage.NewDAGRepository(db.DB)
	runRepo := storage.NewRunRepository(db.DB)
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

	handler := deferredmail.New(deferredRepo, runRepo, dagRepo, creds, disp, reconciler, encryptionKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handler.Run(ctx)
	log.Println("deferred-mail watchdog sweeping every minute")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("received signal %v, shutting down", sig)
	cancel()

	log.Println("deferred-mail watchdog stopped")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

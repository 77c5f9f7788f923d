package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/harshitdeora/task-schedular-sub000/internal/dag"
	"github.com/harshitdeora/task-schedular-sub000/internal/dispatcher"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/internal/trigger"
	"github.com/harshitdeora/task-schedular-sub000/pkg/api/middleware"
)

const version = "1.0.0"

// main runs the HTTP surface: the C11 trigger endpoints and a health
// check. DAG authoring and run inspection are out of scope (spec §1),
// so this binary carries no CRUD routes — creating runs happens only
// through a trigger, a schedule (cmd/scheduler), or a direct CreateRun
// call from tooling that embeds the dispatcher.
func main() {
	log.Printf("Starting workflow orchestrator server v%s", version)

	env := getEnv("ENV", "development")
	port := getEnv("PORT", "8080")

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

	migrateCfg := &storage.MigrateConfig{
		Host: dbCfg.Host, Port: dbCfg.Port, User: dbCfg.User,
		Password: dbCfg.Password, DBName: dbCfg.DBName, SSLMode: dbCfg.SSLMode,
	}
	if err := storage.RunMigrations(migrateCfg, "./migrations"); err != nil {
		log.Printf("warning: migrations: %v", err)
	}

	dagRepo := storage.NewDAGRepository(db.DB)
	runRepo := storage.NewRunRepository(db.DB)

	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	q, err := queue.NewNATSQueue(natsURL)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer q.Close()

	disp := dispatcher.New(dagRepo, runRepo, q)

	if defsDir := os.Getenv("DAG_DEFINITIONS_DIR"); defsDir != "" {
		loadDAGDefinitions(dagRepo, defsDir)
	}

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if env == "development" {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(os.Getenv("FRONTEND_ORIGIN")))

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		services := map[string]string{"database": "healthy", "queue": "healthy"}

		if err := db.Health(c.Request.Context()); err != nil {
			status = "degraded"
			services["database"] = "unhealthy"
		}

		c.JSON(200, gin.H{"status": status, "version": version, "services": services})
	})

	triggerLimiter := middleware.NewRateLimiter(triggerRateLimit(), triggerBurst())
	defer triggerLimiter.Stop()

	trigger.New(dagRepo, disp, triggerLimiter, jwtConfigFromEnv()).Register(router)

	log.Printf("server listening on port %s in %s mode", port, env)
	if err := router.Run(fmt.Sprintf(":%s", port)); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// triggerRateLimit and triggerBurst size the per-source-IP limiter in front
// of the trigger endpoints. Defaults favor a burst of automated callers
// (e.g. a retrying webhook sender) over an operator's manual curl.
func triggerRateLimit() float64 {
	v, err := strconv.ParseFloat(getEnv("TRIGGER_RATE_LIMIT_RPS", "5"), 64)
	if err != nil || v <= 0 {
		return 5
	}
	return v
}

func triggerBurst() int {
	v, err := strconv.Atoi(getEnv("TRIGGER_RATE_LIMIT_BURST", "10"))
	if err != nil || v <= 0 {
		return 10
	}
	return v
}

// jwtConfigFromEnv enables the bearer-token trigger variant only when an
// operator has explicitly configured a signing secret; leaving JWT_SECRET
// unset keeps the by-ID trigger route unregistered rather than trusting
// middleware.DefaultJWTConfig's hardcoded development key in production.
func jwtConfigFromEnv() *middleware.JWTConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil
	}
	return &middleware.JWTConfig{
		SecretKey:     []byte(secret),
		Expiration:    24 * time.Hour,
		RefreshWindow: 1 * time.Hour,
	}
}

// loadDAGDefinitions registers every YAML/JSON DAG found under dir,
// upserting by owner+name so re-running the server with an unchanged
// directory is a no-op. Failures are logged, not fatal: a bad definition
// file shouldn't keep the rest of the fleet from starting.
func loadDAGDefinitions(repo storage.DAGRepository, dir string) {
	dags, err := dag.NewParser().LoadDirectory(dir)
	if err != nil {
		log.Printf("warning: dag definitions: %v", err)
	}

	ctx := context.Background()
	for _, d := range dags {
		existing, lookupErr := repo.GetByOwnerAndName(ctx, d.Owner, d.Name)
		if lookupErr == nil && existing != nil {
			d.ID = existing.ID
			if err := repo.Update(ctx, d); err != nil {
				log.Printf("warning: update dag %s/%s: %v", d.Owner, d.Name, err)
			}
			continue
		}
		if err := repo.Create(ctx, d); err != nil {
			log.Printf("warning: create dag %s/%s: %v", d.Owner, d.Name, err)
		}
	}
	log.Printf("loaded %d DAG definition(s) from %s", len(dags), dir)
}

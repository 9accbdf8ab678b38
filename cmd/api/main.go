package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/srgjo27/custodia/internal/adapter/custodyapi"
	"github.com/srgjo27/custodia/internal/adapter/handler"
	"github.com/srgjo27/custodia/internal/adapter/realtime"
	"github.com/srgjo27/custodia/internal/adapter/repository/postgres"
	"github.com/srgjo27/custodia/internal/adapter/storage/memory"
	redisstore "github.com/srgjo27/custodia/internal/adapter/storage/redis"
	"github.com/srgjo27/custodia/internal/config"
	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
	"github.com/srgjo27/custodia/internal/core/services"
	"github.com/srgjo27/custodia/internal/platform/database"
	"github.com/srgjo27/custodia/internal/platform/events"
	"github.com/srgjo27/custodia/internal/platform/telemetry"
)

func main() {
	var envFile, port string
	flagSet := pflag.NewFlagSet("custodia", pflag.ExitOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "path to a .env file merged into the environment")
	flagSet.StringVar(&port, "port", "", "kiosk API port (overrides KIOSK_PORT)")
	_ = flagSet.Parse(os.Args[1:])

	config.LoadEnvFile(envFile)
	cfg := config.Load()
	if port != "" {
		cfg.Port = port
	}

	shutdownTelemetry := telemetry.Setup(telemetry.Config{
		ServiceName: "custodia-kiosk",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	store, closeStore := openStore(cfg)
	defer closeStore()

	bus := events.New()
	session := services.NewSessionState(store)
	client := custodyapi.NewClient(custodyapi.Config{
		BaseURL:   cfg.CustodyURL,
		AuthURL:   cfg.CustodyAuthURL,
		Campus:    cfg.Campus,
		Timeout:   cfg.CustodyTimeout,
		BatchSize: cfg.CustodyBatchSize,
	}, session)

	numbering := domain.TicketNumbering{Prefix: cfg.TicketPrefix, Total: cfg.TicketTotal, PadWidth: cfg.TicketPadWidth}
	ledger := services.NewTicketLedger(store, numbering)
	cache := services.NewLockerCache(store, client, bus, services.LockerCacheOptions{
		PlaceholderCount: cfg.LockerCount,
		Capacity:         cfg.LockerCapacity,
		Campus:           cfg.Campus,
		HiddenLockerID:   cfg.HiddenLockerID,
		DedupeWindow:     cfg.LockerDedupe,
	})

	activities, db := openActivityLog(cfg, store)
	if db != nil {
		defer db.Close()
	}

	emergency := services.NewEmergencyService(store, ledger, activities, bus)
	reconciler := services.NewReconciler(client, ledger, cache, bus, emergency)
	checkIns := services.NewCheckInService(ledger, cache, reconciler, client, activities, bus, services.CheckInOptions{
		ConfirmRefreshDelay: cfg.ConfirmRefreshDelay,
		ReservationTTL:      cfg.ReservationTTL,
	})
	sessions := services.NewSessionService(client, client, session, store)
	hub := realtime.New(bus, cache)

	bootstrap(cache, ledger, reconciler)

	kiosk := handler.NewKioskHandler(handler.Deps{
		Cache:      cache,
		Ledger:     ledger,
		Reconciler: reconciler,
		CheckIns:   checkIns,
		Lookup:     services.NewUserLookup(client, cfg.LookupDebounce),
		Search:     services.NewTicketSearch(client, numbering),
		Activities: activities,
		Emergency:  emergency,
		Sessions:   sessions,
		Realtime:   hub.Handler("/realtime"),
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	for _, run := range []func(context.Context){
		func(ctx context.Context) { cache.RunBackgroundRefresh(ctx, cfg.LockerRefresh) },
		checkIns.RunBackgroundCleanup,
		hub.Run,
	} {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(workerCtx)
		}(run)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", kiosk.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(handler.LoggingMiddleware(mux), "custodia-kiosk"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	stopWorkers()
	workers.Wait()
	checkIns.Wait()

	log.Println("Server exiting")
}

// openStore connects to Redis when REDIS_HOST is set and falls back to process memory otherwise.
func openStore(cfg config.Config) (ports.StateStore, func()) {
	if cfg.RedisHost == "" {
		log.Println("REDIS_HOST not set, kiosk state is kept in memory only.")
		return memory.NewStore(), func() {}
	}

	log.Printf("Connecting to Redis at %s:%s...", cfg.RedisHost, cfg.RedisPort)

	redisClient := goredis.NewClient(&goredis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		DB:   cfg.RedisDB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Redis connected successfully!")

	return redisstore.NewStore(redisClient, cfg.RedisPrefix), func() { redisClient.Close() }
}

// openActivityLog prefers Postgres when DB_DSN is set; otherwise activities live in the state store.
func openActivityLog(cfg config.Config, store ports.StateStore) (ports.ActivityRepository, *sql.DB) {
	if cfg.DatabaseURL == "" {
		return services.NewActivityLog(store, cfg.ActivityLimit), nil
	}

	db, err := database.NewPostgresDB(database.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		log.Fatalf("Failed to connect to db after retries: %v", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo := postgres.NewActivityRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to prepare activity table: %v", err)
	}
	return repo, db
}

// bootstrap paints from the persisted mirror first, then tries the server. A
// kiosk without a session yet keeps the local state until the operator logs in.
func bootstrap(cache *services.LockerCache, ledger *services.TicketLedger, reconciler *services.Reconciler) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cached, err := cache.Load(ctx)
	if err != nil {
		log.Printf("Failed to load cached lockers: %v", err)
	}

	restored, err := ledger.Load(ctx)
	if err != nil {
		log.Printf("Failed to load ticket state: %v", err)
	}
	if !restored && cached {
		ledger.SyncFromLockers(ctx, cache.Lockers())
	}

	if _, err := reconciler.FetchLockerSnapshot(ctx); err != nil {
		log.Printf("Initial locker fetch skipped: %v", err)
	}
	if _, err := reconciler.SyncWithServer(ctx); err != nil {
		log.Printf("Initial ticket sync skipped: %v", err)
	}
}

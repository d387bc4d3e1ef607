package main

import (
	"context"
	"database/sql"
	"delivery-dispatch-service/internal/adapters/cache"
	"delivery-dispatch-service/internal/adapters/distance"
	"delivery-dispatch-service/internal/adapters/events"
	"delivery-dispatch-service/internal/adapters/repositories"
	"delivery-dispatch-service/internal/api"
	"delivery-dispatch-service/internal/config"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/db"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"delivery-dispatch-service/internal/services"
	"delivery-dispatch-service/internal/socket"
	"delivery-dispatch-service/internal/worker"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires the optional adapters (Postgres, Redis, ORS, RabbitMQ) behind ports
// and runs the HTTP server next to the dispatch worker.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	log := obs.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Dispatch.Location()
	if err != nil {
		return err
	}

	var (
		journal       ports.Journal
		distanceCache ports.DistanceCache
		geocodeCache  ports.GeocodeCache
	)

	if cfg.Database.URL != "" {
		conn, err := openDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		journal = repositories.NewPostgresJournal(conn)
		distanceCache = cache.NewSQLDistanceCache(conn, 30*24*time.Hour)
		geocodeCache = cache.NewSQLGeocodeCache(conn)
	} else {
		log.Warn("DATABASE_URL not set, dispatch state will not survive a restart")
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		fast := cache.NewRedisDistanceCache(rdb, cfg.Redis.TTL)
		if distanceCache == nil {
			distanceCache = fast
		} else {
			distanceCache = &cache.TieredDistanceCache{Fast: fast, Slow: distanceCache}
		}
	}

	opts := []services.Option{
		services.WithLogger(log),
		services.WithClock(func() time.Time { return time.Now().In(loc) }),
	}
	if journal != nil {
		opts = append(opts, services.WithJournal(journal))
	}

	var provider ports.DistanceProvider
	if cfg.ORS.APIKey != "" {
		ors, err := distance.NewORSDistanceProvider(distance.ORSOptions{
			APIKey:  cfg.ORS.APIKey,
			BaseURL: cfg.ORS.BaseURL,
			Profile: cfg.ORS.Profile,
		}, distanceCache, geocodeCache)
		if err != nil {
			return err
		}
		provider = ors
		opts = append(opts, services.WithGeocoder(ors))
	} else {
		log.Warn("ORS_API_KEY not set, using great-circle distances and coordinates-only intake")
		provider = distance.NewHaversineProvider()
	}

	hub := socket.NewHub(log)
	fanout := events.Fanout{hub}

	if cfg.Rabbit.URL != "" {
		amqpConn, err := amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer amqpConn.Close()

		rabbit, err := events.NewRabbitPublisher(amqpConn, cfg.Rabbit.Exchange)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		fanout = append(fanout, rabbit)
	}
	opts = append(opts, services.WithPublisher(fanout))

	engine := services.NewEngine(policyFromConfig(cfg.Dispatch), provider, opts...)
	if err := engine.Restore(ctx); err != nil {
		return err
	}

	dispatcher := worker.NewDispatchWorker(engine, cfg.Dispatch.BatchInterval, cfg.Dispatch.SweepInterval, log)
	go dispatcher.Start(ctx)

	// Batch closes may wait on cold-cache matrix calls.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(engine, hub, cfg.Server.AllowedOrigins, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := db.Open(ctx, cfg.URL, cfg.MaxConns)
	if err != nil {
		return nil, err
	}

	if err := repositories.InitSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func policyFromConfig(c config.DispatchConfig) services.Policy {
	return services.Policy{
		BasePerOrder:        domain.Cents(c.BasePerOrderCents),
		MileageRate:         domain.Cents(c.MileageRateCents),
		CommissionRate:      domain.BasisPoints(c.CommissionBps),
		LargeItemBonus:      domain.Cents(c.LargeItemBonusCents),
		MinOrders:           c.MinOrders,
		MaxOrders:           c.MaxOrders,
		ClusterRadiusMeters: c.ClusterRadiusMeters,
		MaxWait:             c.MaxWait,
		StaleAfter:          c.StaleAfter,
		AbandonAfter:        c.AbandonAfter,
		HeartbeatTimeout:    c.HeartbeatTimeout,
		PoolThreshold:       c.PoolThreshold,
		EnforceSlotCutoff:   c.EnforceSlotCutoff,
	}
}

package main

import (
	"context"
	"database/sql"
	"delivery-dispatch-service/internal/adapters/cache"
	"delivery-dispatch-service/internal/adapters/distance"
	"delivery-dispatch-service/internal/adapters/repositories"
	"delivery-dispatch-service/internal/config"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/db"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/services"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// dbtool initializes the Postgres schema and submits the demo orders through
// the dispatch engine so they land in the journal exactly as live intake would.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := obs.NewLogger(os.Stderr, cfg.Log.Level, "text")
	slog.SetDefault(log)

	if strings.TrimSpace(cfg.Database.URL) == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/orders.json")
	if err := initAndSeed(ctx, cfg, conn, seedPath, log); err != nil {
		log.Error("dbtool failed", "error", err)
		os.Exit(1)
	}
}

func initAndSeed(ctx context.Context, cfg config.Config, conn *sql.DB, seedPath string, log *slog.Logger) error {
	log.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}
	log.Info("schema ready")

	seeds, err := repositories.LoadOrderSeeds(seedPath)
	if err != nil {
		return err
	}

	opts := []services.Option{
		services.WithLogger(log),
		services.WithJournal(repositories.NewPostgresJournal(conn)),
	}
	if cfg.ORS.APIKey != "" {
		geocoder, err := distance.NewORSDistanceProvider(distance.ORSOptions{
			APIKey:  cfg.ORS.APIKey,
			BaseURL: cfg.ORS.BaseURL,
			Profile: cfg.ORS.Profile,
		}, nil, cache.NewSQLGeocodeCache(conn))
		if err != nil {
			return err
		}
		opts = append(opts, services.WithGeocoder(geocoder))
	}

	// Seeds are demo data; submit them regardless of the wall clock.
	policy := services.DefaultPolicy()
	policy.EnforceSlotCutoff = false
	engine := services.NewEngine(policy, distance.NewHaversineProvider(), opts...)

	log.Info("seeding orders", "path", seedPath, "count", len(seeds))
	for i, s := range seeds {
		order, err := engine.Submit(ctx, orderRequest(s))
		if err != nil {
			return fmt.Errorf("seed order %d (buyer %s): %w", i+1, s.BuyerID, err)
		}
		log.Debug("seeded order", "order_id", order.ID, "slot", order.TimeSlot)
	}
	log.Info("seeding complete")

	return nil
}

func orderRequest(s repositories.OrderSeed) services.OrderRequest {
	fee := domain.FeeSplit{
		Buyer:    domain.Cents(s.FeeBuyerCents),
		Seller:   domain.Cents(s.FeeSellerCents),
		Platform: domain.Cents(s.FeePlatformCents),
	}

	return services.OrderRequest{
		BuyerID:           s.BuyerID,
		SellerID:          s.SellerID,
		Pickup:            location(s.Pickup),
		Dropoff:           location(s.Dropoff),
		ItemCount:         s.ItemCount,
		ItemPrice:         domain.Cents(s.ItemPriceCents),
		DeliveryFee:       fee,
		DeliveryMethod:    domain.DeliveryMethod(s.DeliveryMethod),
		SellerShippingFee: domain.Cents(s.SellerShippingCents),
		Tip:               domain.Cents(s.TipCents),
		Large:             s.Large,
		TimeSlot:          s.TimeSlot,
	}
}

func location(l repositories.LocationSeed) domain.Location {
	return domain.Location{
		Address:     l.Address,
		Coordinates: domain.Coordinates{Lat: l.Lat, Lon: l.Lon},
	}
}

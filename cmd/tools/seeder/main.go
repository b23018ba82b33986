// Command seeder loads a catalog JSON file into the Postgres tables read by
// CATALOG_SOURCE=postgres.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-cart/internal/app"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/obs"
)

func main() {
	file := flag.String("file", "catalog.json", "catalog payload to load")
	flag.Parse()

	logger := obs.NewLogger("console", "info")
	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	payload, err := catalog.FileSource{Path: *file}.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *file).Msg("read catalog")
	}
	pool, err := app.NewPool(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := catalog.SeedTx(ctx, pool, payload); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().
		Int("products", len(payload.Products)).
		Int("discounts", len(payload.Discounts)).
		Int("coupons", len(payload.Coupons)).
		Int("shipping", len(payload.Shipping)).
		Msg("catalog seeded")
}

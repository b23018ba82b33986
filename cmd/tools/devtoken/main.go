// Command devtoken prints a bearer token for local testing of the cart API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/noah-isme/toko-cart/internal/auth"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/obs"
)

func main() {
	user := flag.String("user", "dev-user", "subject claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	logger := obs.NewLogger("console", "warn")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if cfg.AppEnv == "production" {
		logger.Fatal().Msg("refusing to mint tokens in production")
	}
	token, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience).Sign(*user, *ttl)
	if err != nil {
		logger.Fatal().Err(err).Msg("sign token")
	}
	fmt.Fprintln(os.Stdout, token)
}

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"JWT_SECRET":               "secret",
		"CATALOG_SOURCE":           "",
		"CATALOG_FILE":             "",
		"CART_TTL":                 "",
		"CART_TIMEZONE":            "",
		"DEFAULT_DISCOUNT_PERCENT": "",
		"RATE_LIMIT_ENABLED":       "",
		"PORT":                     "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, config.CatalogFile, cfg.Catalog.Source)
	require.Equal(t, "catalog.json", cfg.Catalog.File)
	require.Equal(t, 720*time.Hour, cfg.Cart.TTL)
	require.Equal(t, "America/New_York", cfg.Cart.TimeZone)
	require.EqualValues(t, 20, cfg.Cart.DefaultDiscountPercent)
	require.True(t, cfg.Limits.Enabled)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["CATALOG_SOURCE"] = "HTTP"
	env["CATALOG_URL"] = "https://catalog.example.com/v1"
	env["CART_TTL"] = "1h"
	env["CART_TIMEZONE"] = "Asia/Jakarta"
	env["DEFAULT_DISCOUNT_PERCENT"] = "15"
	env["RATE_LIMIT_ENABLED"] = "off"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.test, ,https://b.test"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, config.CatalogHTTP, cfg.Catalog.Source)
	require.Equal(t, time.Hour, cfg.Cart.TTL)
	require.Equal(t, "Asia/Jakarta", cfg.Cart.TimeZone)
	require.EqualValues(t, 15, cfg.Cart.DefaultDiscountPercent)
	require.False(t, cfg.Limits.Enabled)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":   {"JWT_SECRET": ""},
		"http without url": {"CATALOG_SOURCE": "http", "CATALOG_URL": ""},
		"postgres no dsn":  {"CATALOG_SOURCE": "postgres", "DATABASE_URL": ""},
		"unknown source":   {"CATALOG_SOURCE": "ftp"},
		"bad zone":         {"CART_TIMEZONE": "Mars/Olympus"},
		"bad percent":      {"DEFAULT_DISCOUNT_PERCENT": "150"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			env := baseEnv()
			for k, v := range overrides {
				env[k] = v
			}
			_, err := config.LoadForTests(env)
			require.Error(t, err)
		})
	}
}

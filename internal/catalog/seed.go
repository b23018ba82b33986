package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// Schema creates the tables PostgresSource reads.
//
//go:embed schema.sql
var Schema string

// Execer is satisfied by pgx.Tx and pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, amount, size, tags, stock, discount_codes, category, image, description)
VALUES ($1, $2, $3::numeric, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''))
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, amount = EXCLUDED.amount, size = EXCLUDED.size,
  tags = EXCLUDED.tags, stock = EXCLUDED.stock, discount_codes = EXCLUDED.discount_codes,
  category = EXCLUDED.category, image = EXCLUDED.image, description = EXCLUDED.description`

	upsertDiscountSQL = `INSERT INTO discounts (code, amount, type, available, start_date, end_date, minimum_purchase, conditions)
VALUES ($1, $2::numeric, $3, $4, $5, $6, $7::numeric, $8)
ON CONFLICT (code) DO UPDATE SET amount = EXCLUDED.amount, type = EXCLUDED.type, available = EXCLUDED.available,
  start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
  minimum_purchase = EXCLUDED.minimum_purchase, conditions = EXCLUDED.conditions`

	upsertCouponSQL = `INSERT INTO coupons (code, amount, type, available, start_date, end_date, minimum_purchase, free_shipping_threshold)
VALUES ($1, $2::numeric, $3, $4, $5, $6, $7::numeric, $8::numeric)
ON CONFLICT (code) DO UPDATE SET amount = EXCLUDED.amount, type = EXCLUDED.type, available = EXCLUDED.available,
  start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, minimum_purchase = EXCLUDED.minimum_purchase,
  free_shipping_threshold = EXCLUDED.free_shipping_threshold`

	upsertShippingSQL = `INSERT INTO shipping_options (code, name, price, estimated_days, discount_minimum_amount,
  discount_maximum_amount, discount_start_day, discount_end_day, discount_type, discount_value)
VALUES ($1, $2, $3::numeric, NULLIF($4, ''), $5::numeric, $6::numeric, $7, $8, $9, $10::numeric)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, estimated_days = EXCLUDED.estimated_days,
  discount_minimum_amount = EXCLUDED.discount_minimum_amount, discount_maximum_amount = EXCLUDED.discount_maximum_amount,
  discount_start_day = EXCLUDED.discount_start_day, discount_end_day = EXCLUDED.discount_end_day,
  discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value`
)

// Seed validates p and upserts every row. Run it inside a transaction so a
// failed seed leaves the tables unchanged.
func Seed(ctx context.Context, db Execer, p Payload) error {
	if err := Validate(p); err != nil {
		return err
	}
	for _, prod := range p.Products {
		if _, err := db.Exec(ctx, upsertProductSQL, prod.ID, prod.Name, prod.Amount.String(), string(prod.Size),
			prod.Tags, prod.Stock, []string(prod.DiscountCodes), prod.Category, prod.Image, prod.Description); err != nil {
			return fmt.Errorf("seed product %s: %w", prod.ID, err)
		}
	}
	for _, d := range p.Discounts {
		if _, err := db.Exec(ctx, upsertDiscountSQL, d.Code, d.Amount.String(), string(d.Type), d.Available,
			d.StartDate, d.EndDate, moneyText(d.MinimumPurchase), d.Conditions); err != nil {
			return fmt.Errorf("seed discount %s: %w", d.Code, err)
		}
	}
	for _, c := range p.Coupons {
		var threshold *pricing.Money
		if c.ShippingConditions != nil {
			threshold = &c.ShippingConditions.FreeShippingThreshold
		}
		if _, err := db.Exec(ctx, upsertCouponSQL, c.Code, c.Amount.String(), string(c.Type), c.Available,
			c.StartDate, c.EndDate, moneyText(c.MinimumPurchase), moneyText(threshold)); err != nil {
			return fmt.Errorf("seed coupon %s: %w", c.Code, err)
		}
	}
	for _, o := range p.Shipping {
		args := []any{o.Code, o.Name, o.Price.String(), o.EstimatedDays, nil, nil, nil, nil, nil, nil}
		if d := o.Discount; d != nil {
			args[4], args[5] = d.MinimumAmount.String(), d.MaximumAmount.String()
			args[6], args[7] = d.StartDay, d.EndDay
			args[8], args[9] = string(d.Type), d.Value.String()
		}
		if _, err := db.Exec(ctx, upsertShippingSQL, args...); err != nil {
			return fmt.Errorf("seed shipping option %s: %w", o.Code, err)
		}
	}
	return nil
}

// SeedTx applies Schema and Seed in one transaction.
func SeedTx(ctx context.Context, db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}, p Payload) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := Seed(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func moneyText(m *pricing.Money) *string {
	if m == nil {
		return nil
	}
	s := m.String()
	return &s
}

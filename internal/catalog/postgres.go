package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// Querier is the subset of pgxpool.Pool the Postgres source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the catalog from the products, discounts, coupons and
// shipping_options tables. Numeric columns are selected as text so they map
// onto exact decimals.
type PostgresSource struct {
	DB Querier
}

const (
	listProductsSQL = `SELECT id, name, amount::text, COALESCE(size, ''), COALESCE(tags, '{}'), stock,
       COALESCE(discount_codes, '{}'), COALESCE(category, ''), COALESCE(image, ''), COALESCE(description, '')
FROM products ORDER BY name, id`

	listDiscountsSQL = `SELECT code, amount::text, type, available, start_date, end_date,
       minimum_purchase::text, COALESCE(conditions, '{}')
FROM discounts ORDER BY code`

	listCouponsSQL = `SELECT code, amount::text, type, available, start_date, end_date,
       minimum_purchase::text, free_shipping_threshold::text
FROM coupons ORDER BY code`

	listShippingSQL = `SELECT code, name, price::text, COALESCE(estimated_days, ''),
       discount_minimum_amount::text, discount_maximum_amount::text, discount_start_day, discount_end_day,
       discount_type, discount_value::text
FROM shipping_options ORDER BY price, code`
)

// Load runs the four catalog queries.
func (s PostgresSource) Load(ctx context.Context) (payload Payload, err error) {
	defer func() { observeLoad("postgres", err) }()
	if s.DB == nil {
		return Payload{}, errors.New("catalog: database not configured")
	}
	if payload.Products, err = s.products(ctx); err != nil {
		return Payload{}, fmt.Errorf("load products: %w", err)
	}
	if payload.Discounts, err = s.discounts(ctx); err != nil {
		return Payload{}, fmt.Errorf("load discounts: %w", err)
	}
	if payload.Coupons, err = s.coupons(ctx); err != nil {
		return Payload{}, fmt.Errorf("load coupons: %w", err)
	}
	if payload.Shipping, err = s.shipping(ctx); err != nil {
		return Payload{}, fmt.Errorf("load shipping options: %w", err)
	}
	if err = Validate(payload); err != nil {
		return Payload{}, err
	}
	return payload, nil
}

func (s PostgresSource) products(ctx context.Context) ([]cart.Product, error) {
	rows, err := s.DB.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Product, error) {
		var (
			p      cart.Product
			amount string
			size   string
			codes  []string
		)
		if err := row.Scan(&p.ID, &p.Name, &amount, &size, &p.Tags, &p.Stock, &codes, &p.Category, &p.Image, &p.Description); err != nil {
			return cart.Product{}, err
		}
		var err error
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return cart.Product{}, fmt.Errorf("product %s amount: %w", p.ID, err)
		}
		p.Size = cart.Size(size)
		p.DiscountCodes = cart.NewCodeSet(codes...)
		return p, nil
	})
}

func (s PostgresSource) discounts(ctx context.Context) ([]cart.Discount, error) {
	rows, err := s.DB.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Discount, error) {
		var (
			d        cart.Discount
			amount   string
			typ      string
			minimum  *string
			startsAt *time.Time
			endsAt   *time.Time
		)
		if err := row.Scan(&d.Code, &amount, &typ, &d.Available, &startsAt, &endsAt, &minimum, &d.Conditions); err != nil {
			return cart.Discount{}, err
		}
		var err error
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return cart.Discount{}, fmt.Errorf("discount %s amount: %w", d.Code, err)
		}
		if d.MinimumPurchase, err = optionalMoney(minimum); err != nil {
			return cart.Discount{}, fmt.Errorf("discount %s minimum purchase: %w", d.Code, err)
		}
		d.Type = pricing.ParseKind(typ)
		d.StartDate, d.EndDate = startsAt, endsAt
		return d, nil
	})
}

func (s PostgresSource) coupons(ctx context.Context) ([]cart.Coupon, error) {
	rows, err := s.DB.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Coupon, error) {
		var (
			c         cart.Coupon
			amount    string
			typ       string
			minimum   *string
			threshold *string
		)
		if err := row.Scan(&c.Code, &amount, &typ, &c.Available, &c.StartDate, &c.EndDate, &minimum, &threshold); err != nil {
			return cart.Coupon{}, err
		}
		var err error
		if c.Amount, err = decimal.NewFromString(amount); err != nil {
			return cart.Coupon{}, fmt.Errorf("coupon %s amount: %w", c.Code, err)
		}
		if c.MinimumPurchase, err = optionalMoney(minimum); err != nil {
			return cart.Coupon{}, fmt.Errorf("coupon %s minimum purchase: %w", c.Code, err)
		}
		free, err := optionalMoney(threshold)
		if err != nil {
			return cart.Coupon{}, fmt.Errorf("coupon %s free shipping threshold: %w", c.Code, err)
		}
		if free != nil {
			c.ShippingConditions = &cart.ShippingConditions{FreeShippingThreshold: *free}
		}
		c.Type = pricing.ParseKind(typ)
		return c, nil
	})
}

func (s PostgresSource) shipping(ctx context.Context) ([]cart.ShippingOption, error) {
	rows, err := s.DB.Query(ctx, listShippingSQL)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.ShippingOption, error) {
		var (
			o                  cart.ShippingOption
			price              string
			minAmt, maxAmt     *string
			startDay, endDay   *time.Time
			discountType, vStr *string
		)
		if err := row.Scan(&o.Code, &o.Name, &price, &o.EstimatedDays, &minAmt, &maxAmt, &startDay, &endDay, &discountType, &vStr); err != nil {
			return cart.ShippingOption{}, err
		}
		var err error
		if o.Price, err = decimal.NewFromString(price); err != nil {
			return cart.ShippingOption{}, fmt.Errorf("shipping %s price: %w", o.Code, err)
		}
		if discountType == nil || vStr == nil || startDay == nil || endDay == nil {
			return o, nil
		}
		d := &cart.ShippingDiscount{StartDay: *startDay, EndDay: *endDay, Type: pricing.ParseKind(*discountType)}
		if d.Value, err = decimal.NewFromString(*vStr); err != nil {
			return cart.ShippingOption{}, fmt.Errorf("shipping %s discount value: %w", o.Code, err)
		}
		if v, err := optionalMoney(minAmt); err != nil {
			return cart.ShippingOption{}, err
		} else if v != nil {
			d.MinimumAmount = *v
		}
		if v, err := optionalMoney(maxAmt); err != nil {
			return cart.ShippingOption{}, err
		} else if v != nil {
			d.MaximumAmount = *v
		}
		o.Discount = d
		return o, nil
	})
}

func optionalMoney(v *string) (*pricing.Money, error) {
	if v == nil {
		return nil, nil
	}
	m, err := decimal.NewFromString(*v)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// ErrInvalidPayload wraps every validation failure reported by Validate.
var ErrInvalidPayload = errors.New("invalid catalog payload")

// Payload is the reference data a cart store is initialised from.
type Payload struct {
	Products  []cart.Product        `json:"products" validate:"dive"`
	Discounts []cart.Discount       `json:"discounts" validate:"dive"`
	Coupons   []cart.Coupon         `json:"coupons" validate:"dive"`
	Shipping  []cart.ShippingOption `json:"shipping" validate:"dive"`
}

// Command converts the payload into the store initialisation command.
func (p Payload) Command() cart.InitializeStore {
	return cart.InitializeStore{
		Products:  p.Products,
		Discounts: p.Discounts,
		Coupons:   p.Coupons,
		Shipping:  p.Shipping,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags, code uniqueness and money ranges.
func Validate(p Payload) error {
	if err := structValidator().Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var problems []string
	seen := map[string]bool{}
	for _, prod := range p.Products {
		if seen["product:"+prod.ID] {
			problems = append(problems, fmt.Sprintf("duplicate product %q", prod.ID))
		}
		seen["product:"+prod.ID] = true
		if prod.Amount.IsNegative() {
			problems = append(problems, fmt.Sprintf("product %q has negative amount", prod.ID))
		}
	}
	for _, d := range p.Discounts {
		if seen["discount:"+d.Code] {
			problems = append(problems, fmt.Sprintf("duplicate discount %q", d.Code))
		}
		seen["discount:"+d.Code] = true
		problems = append(problems, checkAmount("discount", d.Code, d.Type, d.Amount)...)
	}
	for _, c := range p.Coupons {
		if seen["coupon:"+c.Code] {
			problems = append(problems, fmt.Sprintf("duplicate coupon %q", c.Code))
		}
		seen["coupon:"+c.Code] = true
		problems = append(problems, checkAmount("coupon", c.Code, c.Type, c.Amount)...)
	}
	for _, s := range p.Shipping {
		if seen["shipping:"+s.Code] {
			problems = append(problems, fmt.Sprintf("duplicate shipping option %q", s.Code))
		}
		seen["shipping:"+s.Code] = true
		if s.Price.IsNegative() {
			problems = append(problems, fmt.Sprintf("shipping option %q has negative price", s.Code))
		}
		if d := s.Discount; d != nil && d.MaximumAmount.LessThan(d.MinimumAmount) {
			problems = append(problems, fmt.Sprintf("shipping option %q discount band is inverted", s.Code))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
	}
	return nil
}

var maxPercent = pricing.NewMoney(10000)

func checkAmount(kind, code string, typ pricing.Kind, amount pricing.Money) []string {
	var out []string
	if amount.IsNegative() {
		out = append(out, fmt.Sprintf("%s %q has negative amount", kind, code))
	}
	if typ.IsPercent() && amount.GreaterThan(maxPercent) {
		out = append(out, fmt.Sprintf("%s %q exceeds 100 percent", kind, code))
	}
	return out
}

package cart

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// Size is the product size label used by the catalog.
type Size string

const (
	SizeSmall  Size = "SMALL"
	SizeMedium Size = "MEDIUM"
	SizeLarge  Size = "LARGE"
)

// CodeSet holds the discount codes applicable to a product. It decodes from
// either a single JSON string or an array of strings.
type CodeSet []string

// UnmarshalJSON accepts "X", ["X","Y"] and null.
func (c *CodeSet) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*c = NewCodeSet(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*c = NewCodeSet(many...)
	return nil
}

// NewCodeSet trims, drops blanks and removes duplicates while keeping order.
func NewCodeSet(codes ...string) CodeSet {
	out := make(CodeSet, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" || slices.Contains(out, code) {
			continue
		}
		out = append(out, code)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Has reports whether code is in the set.
func (c CodeSet) Has(code string) bool {
	return code != "" && slices.Contains(c, code)
}

// Product is immutable catalog reference data.
type Product struct {
	ID            string        `json:"id" validate:"required"`
	Name          string        `json:"name" validate:"required"`
	Amount        pricing.Money `json:"amount"`
	Size          Size          `json:"size,omitempty" validate:"omitempty,oneof=SMALL MEDIUM LARGE"`
	Tags          []string      `json:"tags,omitempty"`
	Stock         int           `json:"stock" validate:"gte=0"`
	DiscountCodes CodeSet       `json:"discountCode,omitempty"`
	Category      string        `json:"category,omitempty"`
	Image         string        `json:"image,omitempty"`
	Description   string        `json:"description,omitempty"`
}

// Discount is an item-level price reduction keyed by code.
type Discount struct {
	Code            string         `json:"code" validate:"required"`
	Amount          pricing.Money  `json:"amount"`
	Type            pricing.Kind   `json:"type" validate:"oneof=PERCENT FLAT"`
	Available       bool           `json:"available"`
	StartDate       *time.Time     `json:"startDate,omitempty"`
	EndDate         *time.Time     `json:"endDate,omitempty"`
	MinimumPurchase *pricing.Money `json:"minimumPurchase,omitempty"`
	Conditions      []string       `json:"conditions,omitempty"`
}

// placeholder reports whether d is the unavailable 0% record ApplyDiscount
// leaves behind for a code no item carried.
func (d Discount) placeholder() bool {
	return !d.Available && d.Amount.IsZero()
}

func (d Discount) rule() pricing.Rule {
	return pricing.Rule{
		Code:            d.Code,
		Adjustment:      pricing.Adjustment{Kind: d.Type, Amount: d.Amount},
		Available:       d.Available,
		Window:          pricing.Window{Start: d.StartDate, End: d.EndDate},
		MinimumPurchase: d.MinimumPurchase,
	}
}

// ShippingConditions carries coupon-specific shipping perks.
type ShippingConditions struct {
	FreeShippingThreshold pricing.Money `json:"freeShippingThreshold"`
}

// Coupon is a cart-level discount; at most one is attached to a cart.
type Coupon struct {
	Code               string              `json:"code" validate:"required"`
	Amount             pricing.Money       `json:"amount"`
	Type               pricing.Kind        `json:"type" validate:"oneof=PERCENT FLAT"`
	Available          bool                `json:"available"`
	StartDate          *time.Time          `json:"startDate,omitempty"`
	EndDate            *time.Time          `json:"endDate,omitempty"`
	MinimumPurchase    *pricing.Money      `json:"minimumPurchase,omitempty"`
	ShippingConditions *ShippingConditions `json:"shippingConditions,omitempty"`
}

func (c *Coupon) pricing() *pricing.Coupon {
	if c == nil {
		return nil
	}
	out := &pricing.Coupon{Rule: pricing.Rule{
		Code:            c.Code,
		Adjustment:      pricing.Adjustment{Kind: c.Type, Amount: c.Amount},
		Available:       c.Available,
		Window:          pricing.Window{Start: c.StartDate, End: c.EndDate},
		MinimumPurchase: c.MinimumPurchase,
	}}
	if c.ShippingConditions != nil {
		threshold := c.ShippingConditions.FreeShippingThreshold
		out.FreeShippingThreshold = &threshold
	}
	return out
}

// ShippingDiscount reduces a shipping option's price inside an amount band and date range.
type ShippingDiscount struct {
	MinimumAmount pricing.Money `json:"minimumAmount"`
	MaximumAmount pricing.Money `json:"maximumAmount"`
	StartDay      time.Time     `json:"startDay"`
	EndDay        time.Time     `json:"endDay"`
	Type          pricing.Kind  `json:"type" validate:"oneof=FLAT PERCENTAGE"`
	Value         pricing.Money `json:"value"`
}

// ShippingOption is a selectable delivery method.
type ShippingOption struct {
	Code          string            `json:"code" validate:"required"`
	Name          string            `json:"name"`
	Price         pricing.Money     `json:"price"`
	EstimatedDays string            `json:"estimatedDays,omitempty"`
	Discount      *ShippingDiscount `json:"discount,omitempty" validate:"omitempty"`
}

func (s *ShippingOption) pricing() *pricing.Shipping {
	if s == nil {
		return nil
	}
	out := &pricing.Shipping{Price: s.Price}
	if d := s.Discount; d != nil {
		out.Discount = &pricing.ShippingDiscount{
			MinimumAmount: d.MinimumAmount,
			MaximumAmount: d.MaximumAmount,
			StartDay:      d.StartDay,
			EndDay:        d.EndDay,
			Kind:          d.Type,
			Value:         d.Value,
		}
	}
	return out
}

// Item is one cart line. Total is pre-discount; DiscountedTotal is after the item discount.
type Item struct {
	Product         Product       `json:"product"`
	Discount        *Discount     `json:"discount,omitempty"`
	Count           int           `json:"count"`
	Total           pricing.Money `json:"total"`
	DiscountedTotal pricing.Money `json:"discountedTotal"`
	IsChecked       bool          `json:"isChecked"`
	AddedDateTime   time.Time     `json:"addedDateTime"`
	Seq             uint64        `json:"seq"`
}

// Cart is the aggregate root. Items are unique by product id, most recent first.
type Cart struct {
	UserID            string          `json:"userId"`
	Items             []Item          `json:"items"`
	Shipping          *ShippingOption `json:"shipping"`
	Coupon            *Coupon         `json:"coupon,omitempty"`
	SubTotal          pricing.Money   `json:"subTotal"`
	TotalPrice        pricing.Money   `json:"totalPrice"`
	ShippingCost      pricing.Money   `json:"shippingCost"`
	TermsAndAgreement *bool           `json:"termsAndAgreement,omitempty"`
}

// State is the store root: the cart plus the reference collections it prices against.
type State struct {
	Cart            Cart             `json:"cart"`
	Discounts       []Discount       `json:"discount"`
	Coupons         []Coupon         `json:"coupons"`
	Products        []Product        `json:"availableProducts"`
	ShippingOptions []ShippingOption `json:"shippingOptions"`
	TotalDiscount   pricing.Money    `json:"totalDiscount"`
	Seq             uint64           `json:"seq"`
}

// NewState returns an empty store.
func NewState() State {
	return State{
		Cart:            Cart{Items: []Item{}},
		Discounts:       []Discount{},
		Coupons:         []Coupon{},
		Products:        []Product{},
		ShippingOptions: []ShippingOption{},
	}
}

// FindItem returns the item for productID, if any.
func (s State) FindItem(productID string) (Item, bool) {
	for _, it := range s.Cart.Items {
		if it.Product.ID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// FindProduct returns the catalog product for id, if any.
func (s State) FindProduct(id string) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

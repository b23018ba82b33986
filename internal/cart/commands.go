package cart

import (
	"slices"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// InitializeStore replaces the reference collections. Items already in the
// cart are kept as they are.
type InitializeStore struct {
	Products  []Product
	Discounts []Discount
	Coupons   []Coupon
	Shipping  []ShippingOption
}

func (InitializeStore) Name() string { return "initialize_store" }

func (c InitializeStore) apply(s State, _ Env) State {
	s.Products = orEmpty(slices.Clone(c.Products))
	s.Discounts = orEmpty(slices.Clone(c.Discounts))
	s.Coupons = orEmpty(slices.Clone(c.Coupons))
	s.ShippingOptions = orEmpty(slices.Clone(c.Shipping))
	return s
}

// AddToCart adds Count units of Product, merging with an existing line.
// Count is not validated here.
type AddToCart struct {
	Product   Product
	Count     int
	IsChecked bool
}

func (AddToCart) Name() string { return "add_to_cart" }

func (c AddToCart) apply(s State, env Env) State {
	now := env.now()
	items := slices.Clone(s.Cart.Items)
	s.Seq++

	if idx := indexOf(items, c.Product.ID); idx >= 0 {
		it := items[idx]
		it.Count += c.Count
		it.IsChecked = c.IsChecked
		it.AddedDateTime = now
		it.Seq = s.Seq
		items[idx] = priceItem(it, s.Discounts, now)
	} else {
		items = append(items, priceItem(Item{
			Product:       c.Product,
			Count:         c.Count,
			IsChecked:     c.IsChecked,
			AddedDateTime: now,
			Seq:           s.Seq,
		}, s.Discounts, now))
	}
	sortItems(items)
	s.Cart.Items = items
	return recompute(s, env)
}

// UpdateProductCount sets an item's count to exactly Count.
type UpdateProductCount struct {
	ProductID string
	Count     int
}

func (UpdateProductCount) Name() string { return "update_product_count" }

func (c UpdateProductCount) apply(s State, env Env) State {
	idx := indexOf(s.Cart.Items, c.ProductID)
	if idx < 0 {
		return s
	}
	items := slices.Clone(s.Cart.Items)
	it := items[idx]
	it.Count = c.Count
	items[idx] = priceItem(it, s.Discounts, env.now())
	s.Cart.Items = items
	return recompute(s, env)
}

// RemoveFromCart drops the item for ProductID together with its discount contribution.
type RemoveFromCart struct {
	ProductID string
}

func (RemoveFromCart) Name() string { return "remove_from_cart" }

func (c RemoveFromCart) apply(s State, env Env) State {
	idx := indexOf(s.Cart.Items, c.ProductID)
	if idx < 0 {
		return s
	}
	s.Cart.Items = slices.Delete(slices.Clone(s.Cart.Items), idx, idx+1)
	return recompute(s, env)
}

// ApplyDiscount applies Code to every item whose product carries it.
//
// The rate comes from the catalog entry for Code; codes missing from the
// catalog use Env.DefaultDiscount when at least one item carries them. A
// record for Code is added to the catalog if none exists, unavailable when no
// item carries the code. That unavailable placeholder is replaced with the
// default record once an item carrying the code is in the cart. Items whose
// total misses the discount's minimum purchase keep their current price.
type ApplyDiscount struct {
	Code string
}

func (ApplyDiscount) Name() string { return "apply_discount" }

func (c ApplyDiscount) apply(s State, env Env) State {
	now := env.now()
	valid := slices.ContainsFunc(s.Cart.Items, func(it Item) bool { return it.Product.DiscountCodes.Has(c.Code) })

	idx := slices.IndexFunc(s.Discounts, func(d Discount) bool { return d.Code == c.Code })
	var d Discount
	if idx >= 0 {
		d = s.Discounts[idx]
	}
	if idx < 0 || (valid && d.placeholder()) {
		d = Discount{Code: c.Code, Amount: pricing.Zero, Type: pricing.KindPercent, Available: false}
		if valid {
			d = Discount{Code: c.Code, Amount: env.DefaultDiscount.Amount, Type: env.DefaultDiscount.Kind, Available: true}
		}
		discounts := slices.Clone(s.Discounts)
		if idx < 0 {
			discounts = append(discounts, d)
		} else {
			discounts[idx] = d
		}
		s.Discounts = discounts
	}
	if !valid {
		return recompute(s, env)
	}

	items := slices.Clone(s.Cart.Items)
	for i, it := range items {
		if !it.Product.DiscountCodes.Has(c.Code) {
			continue
		}
		total := pricing.LineTotal(it.Product.Amount, it.Count)
		if d.rule().Validate(now, total) != nil {
			continue
		}
		snapshot := d
		it.Total = total
		it.Discount = &snapshot
		it.DiscountedTotal = total.Sub(snapshot.rule().Value(total))
		items[i] = it
	}
	s.Cart.Items = items
	return recompute(s, env)
}

// ApplyCoupon attaches the available coupon with Code, or clears the coupon when none matches.
type ApplyCoupon struct {
	Code string
}

func (ApplyCoupon) Name() string { return "apply_coupon" }

func (c ApplyCoupon) apply(s State, env Env) State {
	s.Cart.Coupon = nil
	for _, cp := range s.Coupons {
		if cp.Code == c.Code && cp.Available {
			found := cp
			s.Cart.Coupon = &found
			break
		}
	}
	return recompute(s, env)
}

// RemoveCoupon detaches the cart coupon.
type RemoveCoupon struct{}

func (RemoveCoupon) Name() string { return "remove_coupon" }

func (RemoveCoupon) apply(s State, env Env) State {
	s.Cart.Coupon = nil
	return recompute(s, env)
}

// SetShipping selects the catalog shipping option with Code. Unknown codes leave the state unchanged.
type SetShipping struct {
	Code string
}

func (SetShipping) Name() string { return "set_shipping" }

func (c SetShipping) apply(s State, env Env) State {
	for _, opt := range s.ShippingOptions {
		if opt.Code == c.Code {
			selected := opt
			s.Cart.Shipping = &selected
			return recompute(s, env)
		}
	}
	return s
}

// ClearCart empties the cart and wipes the discount and coupon catalogs.
// Products and shipping options survive.
type ClearCart struct{}

func (ClearCart) Name() string { return "clear_cart" }

func (ClearCart) apply(s State, _ Env) State {
	s.Cart = Cart{Items: []Item{}}
	s.Discounts = []Discount{}
	s.Coupons = []Coupon{}
	s.TotalDiscount = pricing.Zero
	return s
}

// UpdateProductCheck toggles whether the item takes part in the totals.
type UpdateProductCheck struct {
	ProductID string
}

func (UpdateProductCheck) Name() string { return "update_product_check" }

func (c UpdateProductCheck) apply(s State, env Env) State {
	idx := indexOf(s.Cart.Items, c.ProductID)
	if idx < 0 {
		return s
	}
	items := slices.Clone(s.Cart.Items)
	items[idx].IsChecked = !items[idx].IsChecked
	s.Cart.Items = items
	return recompute(s, env)
}

// CheckAllItems sets every item's checked flag.
type CheckAllItems struct {
	Check bool
}

func (CheckAllItems) Name() string { return "check_all_items" }

func (c CheckAllItems) apply(s State, env Env) State {
	items := slices.Clone(s.Cart.Items)
	for i := range items {
		items[i].IsChecked = c.Check
	}
	s.Cart.Items = items
	return recompute(s, env)
}

// SetAgreement toggles the terms-and-agreement flag.
type SetAgreement struct{}

func (SetAgreement) Name() string { return "set_agreement" }

func (SetAgreement) apply(s State, _ Env) State {
	agreed := s.Cart.TermsAndAgreement == nil || !*s.Cart.TermsAndAgreement
	s.Cart.TermsAndAgreement = &agreed
	return s
}

// SetUser stamps the cart with the authenticated user id.
type SetUser struct {
	UserID string
}

func (SetUser) Name() string { return "set_user" }

func (c SetUser) apply(s State, _ Env) State {
	s.Cart.UserID = c.UserID
	return s
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

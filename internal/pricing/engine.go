package pricing

import "time"

// Line describes a cart line as seen by the pricing functions.
type Line struct {
	Total           Money
	DiscountedTotal Money
	Checked         bool
}

// ShippingDiscount reduces the shipping price while the cart amount and the
// current day fall inside the configured bands.
type ShippingDiscount struct {
	MinimumAmount Money
	MaximumAmount Money
	StartDay      time.Time
	EndDay        time.Time
	Kind          Kind
	Value         Money
}

// Shipping is the selected shipping option.
type Shipping struct {
	Price    Money
	Discount *ShippingDiscount
}

// Summary aggregates computed pricing components.
type Summary struct {
	SubTotal       Money
	CouponDiscount Money
	Shipping       Money
	// Total excludes Shipping; GrandTotal includes it.
	Total      Money
	GrandTotal Money
}

// SubTotal sums the discounted totals of checked lines.
func SubTotal(lines []Line) Money {
	sum := Zero
	for _, l := range lines {
		if !l.Checked {
			continue
		}
		sum = sum.Add(l.DiscountedTotal)
	}
	return sum
}

// TotalPrice returns the cart total after the coupon, floored at zero.
func TotalPrice(lines []Line, shipping *Shipping, coupon *Coupon, now time.Time) Money {
	return Compute(lines, shipping, coupon, now).Total
}

// Compute calculates every cart total component given the provided inputs.
func Compute(lines []Line, shipping *Shipping, coupon *Coupon, now time.Time) Summary {
	sub := SubTotal(lines)
	adjusted := sub
	couponApplied := false
	if coupon != nil && coupon.Validate(now, sub) == nil {
		adjusted = coupon.Apply(sub)
		couponApplied = true
	}

	ship := ShippingCost(shipping, adjusted, now)
	if couponApplied && coupon.FreeShippingThreshold != nil && adjusted.GreaterThanOrEqual(*coupon.FreeShippingThreshold) {
		ship = Zero
	}

	total := Floor0(adjusted)
	return Summary{
		SubTotal:       sub,
		CouponDiscount: sub.Sub(total),
		Shipping:       ship,
		Total:          total,
		GrandTotal:     total.Add(ship),
	}
}

// ShippingCost returns the shipping price after its conditional discount for
// the given cart amount. A nil option costs nothing.
func ShippingCost(shipping *Shipping, amount Money, now time.Time) Money {
	if shipping == nil {
		return Zero
	}
	cost := shipping.Price
	d := shipping.Discount
	if d == nil {
		return cost
	}
	if amount.LessThan(d.MinimumAmount) || amount.GreaterThan(d.MaximumAmount) {
		return cost
	}
	if now.Before(d.StartDay) || now.After(d.EndDay) {
		return cost
	}
	switch {
	case d.Kind == KindFlat:
		return Floor0(shipping.Price.Sub(d.Value))
	case d.Kind.IsPercent():
		return Floor0(Scale(shipping.Price, d.Value))
	default:
		return cost
	}
}

package cart

import (
	"slices"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// DefaultTimeZone is the zone item timestamps are normalised to.
const DefaultTimeZone = "America/New_York"

// Env carries the collaborators a command needs besides the previous state.
type Env struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Location normalises item timestamps. Nil keeps the clock's zone.
	Location *time.Location
	// DefaultDiscount is used by ApplyDiscount for codes with no catalog entry.
	DefaultDiscount pricing.Adjustment
}

// DefaultEnv returns the production environment: wall clock, New York time and a 20% default discount.
func DefaultEnv() Env {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return Env{
		Now:             time.Now,
		Location:        loc,
		DefaultDiscount: pricing.Adjustment{Kind: pricing.KindPercent, Amount: pricing.NewMoney(2000)},
	}
}

func (e Env) now() time.Time {
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	if e.Location != nil {
		now = now.In(e.Location)
	}
	return now
}

// Command is a state transition. Commands never fail: lookups that miss leave
// the state unchanged.
type Command interface {
	// Name identifies the command in logs and metrics.
	Name() string
	apply(s State, env Env) State
}

// Reduce applies cmd to s and returns the next state. s is not modified.
func Reduce(s State, cmd Command, env Env) State {
	if cmd == nil {
		return s
	}
	return cmd.apply(s, env)
}

// ReduceAll folds cmds over s in order.
func ReduceAll(s State, env Env, cmds ...Command) State {
	for _, cmd := range cmds {
		s = Reduce(s, cmd, env)
	}
	return s
}

// recompute derives every dependent total from the current items.
func recompute(s State, env Env) State {
	lines := make([]pricing.Line, 0, len(s.Cart.Items))
	totalDiscount := pricing.Zero
	for _, it := range s.Cart.Items {
		lines = append(lines, pricing.Line{Total: it.Total, DiscountedTotal: it.DiscountedTotal, Checked: it.IsChecked})
		totalDiscount = totalDiscount.Add(it.Total.Sub(it.DiscountedTotal))
	}
	summary := pricing.Compute(lines, s.Cart.Shipping.pricing(), s.Cart.Coupon.pricing(), env.now())
	s.Cart.SubTotal = summary.SubTotal
	s.Cart.TotalPrice = summary.Total
	s.Cart.ShippingCost = summary.Shipping
	s.TotalDiscount = totalDiscount
	return s
}

// priceItem sets Total and DiscountedTotal for the item's count using the
// first applicable catalog discount for its product.
func priceItem(it Item, discounts []Discount, now time.Time) Item {
	it.Total = pricing.LineTotal(it.Product.Amount, it.Count)
	it.Discount = nil
	it.DiscountedTotal = it.Total
	if d, ok := lookupDiscount(discounts, it.Product.DiscountCodes, it.Total, now); ok {
		it.Discount = &d
		it.DiscountedTotal = it.Total.Sub(d.rule().Value(it.Total))
	}
	return it
}

func lookupDiscount(discounts []Discount, codes CodeSet, base pricing.Money, now time.Time) (Discount, bool) {
	for _, d := range discounts {
		if !codes.Has(d.Code) {
			continue
		}
		if d.rule().Validate(now, base) != nil {
			continue
		}
		return d, true
	}
	return Discount{}, false
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Seq > items[j].Seq })
}

func indexOf(items []Item, productID string) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.Product.ID == productID })
}

package pricing

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnavailable is returned when a rule has been switched off in the catalog.
	ErrUnavailable = errors.New("pricing rule unavailable")
	// ErrInactive is returned when the rule's validity window has not started yet.
	ErrInactive = errors.New("pricing rule not active")
	// ErrExpired is returned when the rule's validity window has ended.
	ErrExpired = errors.New("pricing rule expired")
	// ErrMinimumPurchaseUnmet indicates the base amount is below the rule's minimum purchase.
	ErrMinimumPurchaseUnmet = errors.New("pricing rule minimum purchase not met")
)

// Kind selects how an adjustment amount is interpreted.
type Kind string

const (
	// KindPercent treats the amount as a percentage (0-100) of the base.
	KindPercent Kind = "PERCENT"
	// KindFlat treats the amount as a fixed currency reduction.
	KindFlat Kind = "FLAT"
	// KindPercentage is the spelling shipping rules use for percent reductions.
	KindPercentage Kind = "PERCENTAGE"
)

// ParseKind normalises the textual kind; unknown values yield "".
func ParseKind(value string) Kind {
	switch Kind(strings.ToUpper(strings.TrimSpace(value))) {
	case KindPercent:
		return KindPercent
	case KindPercentage:
		return KindPercentage
	case KindFlat:
		return KindFlat
	default:
		return ""
	}
}

// IsPercent reports whether the kind is a relative reduction.
func (k Kind) IsPercent() bool {
	return k == KindPercent || k == KindPercentage
}

// Adjustment is a FLAT or PERCENT reduction.
type Adjustment struct {
	Kind   Kind
	Amount Money
}

// Value returns the reduction the adjustment yields against base, clamped to [0, base].
// FLAT reductions are not scaled by any quantity behind base.
func (a Adjustment) Value(base Money) Money {
	if !base.IsPositive() {
		return Zero
	}
	var v Money
	switch {
	case a.Kind.IsPercent():
		v = Percent(base, a.Amount)
	case a.Kind == KindFlat:
		v = a.Amount
	default:
		return Zero
	}
	if v.IsNegative() {
		return Zero
	}
	if v.GreaterThan(base) {
		return base
	}
	return v
}

// Apply returns base after the adjustment. The result is not floored.
func (a Adjustment) Apply(base Money) Money {
	switch {
	case a.Kind.IsPercent():
		return Scale(base, a.Amount)
	case a.Kind == KindFlat:
		return base.Sub(a.Amount)
	default:
		return base
	}
}

// Window bounds the instants a rule is valid. Nil ends are open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether now falls inside the window, both ends inclusive.
func (w Window) Contains(now time.Time) bool {
	return w.check(now) == nil
}

func (w Window) check(now time.Time) error {
	if w.Start != nil && now.Before(*w.Start) {
		return ErrInactive
	}
	if w.End != nil && now.After(*w.End) {
		return ErrExpired
	}
	return nil
}

// Rule captures the runtime constraints shared by item discounts and cart coupons.
type Rule struct {
	Code string
	Adjustment
	Available       bool
	Window          Window
	MinimumPurchase *Money
}

// Validate ensures the rule can be applied at the provided instant against base.
func (r Rule) Validate(now time.Time, base Money) error {
	if !r.Available {
		return ErrUnavailable
	}
	if err := r.Window.check(now); err != nil {
		return err
	}
	if r.MinimumPurchase != nil && base.LessThan(*r.MinimumPurchase) {
		return ErrMinimumPurchaseUnmet
	}
	return nil
}

// Coupon is a cart-level rule with an optional free-shipping threshold.
type Coupon struct {
	Rule
	FreeShippingThreshold *Money
}

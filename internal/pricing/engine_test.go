package pricing

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func m(value string) Money {
	v, err := ParseMoney(value)
	if err != nil {
		panic(err)
	}
	return v
}

func ptr[T any](v T) *T { return &v }

func TestSubTotalSkipsUncheckedLines(t *testing.T) {
	lines := []Line{
		{Total: m("20"), DiscountedTotal: m("18"), Checked: true},
		{Total: m("15"), DiscountedTotal: m("15"), Checked: false},
		{Total: m("5"), DiscountedTotal: m("4.5"), Checked: true},
	}
	if got := SubTotal(lines); !got.Equal(m("22.5")) {
		t.Fatalf("expected subtotal 22.5, got %s", got)
	}
}

func TestTotalPriceFlatCoupon(t *testing.T) {
	lines := []Line{{Total: m("50"), DiscountedTotal: m("50"), Checked: true}}
	coupon := &Coupon{Rule: Rule{Code: "SAVE10", Available: true, Adjustment: Adjustment{Kind: KindFlat, Amount: m("10")}}}
	if got := TotalPrice(lines, nil, coupon, testNow); !got.Equal(m("40")) {
		t.Fatalf("expected total 40, got %s", got)
	}
}

func TestTotalPricePercentCoupon(t *testing.T) {
	lines := []Line{{Total: m("80"), DiscountedTotal: m("80"), Checked: true}}
	coupon := &Coupon{Rule: Rule{Available: true, Adjustment: Adjustment{Kind: KindPercent, Amount: m("25")}}}
	if got := TotalPrice(lines, nil, coupon, testNow); !got.Equal(m("60")) {
		t.Fatalf("expected total 60, got %s", got)
	}
}

func TestTotalPriceIgnoresUnavailableCoupon(t *testing.T) {
	lines := []Line{{Total: m("50"), DiscountedTotal: m("50"), Checked: true}}
	coupon := &Coupon{Rule: Rule{Available: false, Adjustment: Adjustment{Kind: KindFlat, Amount: m("10")}}}
	if got := TotalPrice(lines, nil, coupon, testNow); !got.Equal(m("50")) {
		t.Fatalf("expected total 50, got %s", got)
	}
}

func TestTotalPriceCouponOutsideWindow(t *testing.T) {
	lines := []Line{{Total: m("50"), DiscountedTotal: m("50"), Checked: true}}
	end := testNow.Add(-time.Hour)
	coupon := &Coupon{Rule: Rule{Available: true, Window: Window{End: &end}, Adjustment: Adjustment{Kind: KindFlat, Amount: m("10")}}}
	if got := TotalPrice(lines, nil, coupon, testNow); !got.Equal(m("50")) {
		t.Fatalf("expected expired coupon to be ignored, got %s", got)
	}
}

func TestTotalPriceCouponMinimumPurchase(t *testing.T) {
	lines := []Line{{Total: m("30"), DiscountedTotal: m("30"), Checked: true}}
	coupon := &Coupon{Rule: Rule{Available: true, MinimumPurchase: ptr(m("40")), Adjustment: Adjustment{Kind: KindFlat, Amount: m("10")}}}
	if got := TotalPrice(lines, nil, coupon, testNow); !got.Equal(m("30")) {
		t.Fatalf("expected minimum purchase to block coupon, got %s", got)
	}
}

func TestTotalPriceNeverNegative(t *testing.T) {
	cases := []struct {
		name   string
		lines  []Line
		coupon *Coupon
	}{
		{"flat larger than subtotal", []Line{{DiscountedTotal: m("5"), Checked: true}}, &Coupon{Rule: Rule{Available: true, Adjustment: Adjustment{Kind: KindFlat, Amount: m("100")}}}},
		{"percent over hundred", []Line{{DiscountedTotal: m("5"), Checked: true}}, &Coupon{Rule: Rule{Available: true, Adjustment: Adjustment{Kind: KindPercent, Amount: m("150")}}}},
		{"negative line", []Line{{DiscountedTotal: m("-12"), Checked: true}}, nil},
		{"empty", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TotalPrice(tc.lines, nil, tc.coupon, testNow)
			if got.IsNegative() {
				t.Fatalf("expected non-negative total, got %s", got)
			}
		})
	}
}

func TestShippingExcludedFromTotal(t *testing.T) {
	lines := []Line{{Total: m("50"), DiscountedTotal: m("50"), Checked: true}}
	ship := &Shipping{Price: m("7.5")}
	summary := Compute(lines, ship, nil, testNow)
	if !summary.Total.Equal(m("50")) {
		t.Fatalf("expected shipping to stay out of total, got %s", summary.Total)
	}
	if !summary.Shipping.Equal(m("7.5")) {
		t.Fatalf("expected shipping 7.5, got %s", summary.Shipping)
	}
	if !summary.GrandTotal.Equal(m("57.5")) {
		t.Fatalf("expected grand total 57.5, got %s", summary.GrandTotal)
	}
}

func TestShippingCostConditionalDiscount(t *testing.T) {
	rule := &ShippingDiscount{
		MinimumAmount: m("20"),
		MaximumAmount: m("100"),
		StartDay:      testNow.Add(-24 * time.Hour),
		EndDay:        testNow.Add(24 * time.Hour),
		Kind:          KindFlat,
		Value:         m("3"),
	}
	ship := &Shipping{Price: m("10"), Discount: rule}

	if got := ShippingCost(ship, m("50"), testNow); !got.Equal(m("7")) {
		t.Fatalf("expected flat shipping discount, got %s", got)
	}
	if got := ShippingCost(ship, m("10"), testNow); !got.Equal(m("10")) {
		t.Fatalf("expected full price below band, got %s", got)
	}
	if got := ShippingCost(ship, m("50"), testNow.Add(48*time.Hour)); !got.Equal(m("10")) {
		t.Fatalf("expected full price outside dates, got %s", got)
	}

	rule.Kind = KindPercentage
	rule.Value = m("50")
	if got := ShippingCost(ship, m("50"), testNow); !got.Equal(m("5")) {
		t.Fatalf("expected percentage shipping discount, got %s", got)
	}

	rule.Kind = KindFlat
	rule.Value = m("30")
	if got := ShippingCost(ship, m("50"), testNow); !got.IsZero() {
		t.Fatalf("expected shipping floored at zero, got %s", got)
	}
}

func TestCouponFreeShippingThreshold(t *testing.T) {
	lines := []Line{{Total: m("120"), DiscountedTotal: m("120"), Checked: true}}
	coupon := &Coupon{
		Rule:                  Rule{Available: true, Adjustment: Adjustment{Kind: KindFlat, Amount: m("10")}},
		FreeShippingThreshold: ptr(m("100")),
	}
	summary := Compute(lines, &Shipping{Price: m("9")}, coupon, testNow)
	if !summary.Shipping.IsZero() {
		t.Fatalf("expected free shipping, got %s", summary.Shipping)
	}
	if !summary.CouponDiscount.Equal(m("10")) {
		t.Fatalf("expected coupon discount 10, got %s", summary.CouponDiscount)
	}
}

func TestAdjustmentValue(t *testing.T) {
	flat := Adjustment{Kind: KindFlat, Amount: m("5")}
	if got := flat.Value(m("20")); !got.Equal(m("5")) {
		t.Fatalf("expected flat 5, got %s", got)
	}
	if got := flat.Value(m("3")); !got.Equal(m("3")) {
		t.Fatalf("expected flat clamped to base, got %s", got)
	}
	pct := Adjustment{Kind: KindPercent, Amount: m("10")}
	if got := pct.Value(m("20")); !got.Equal(m("2")) {
		t.Fatalf("expected percent 2, got %s", got)
	}
	if got := pct.Value(Zero); !got.IsZero() {
		t.Fatalf("expected zero on empty base, got %s", got)
	}
}

func TestRuleValidate(t *testing.T) {
	start := testNow.Add(time.Hour)
	rule := Rule{Available: true, Window: Window{Start: &start}}
	if err := rule.Validate(testNow, m("10")); err != ErrInactive {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	rule = Rule{Available: false}
	if err := rule.Validate(testNow, m("10")); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if ParseKind(" percent ") != KindPercent || ParseKind("bogus") != "" {
		t.Fatal("unexpected kind parsing")
	}
}

package estimate

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := dec(t, s)
	return &d
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name   string
		qty    *decimal.Decimal
		rate   *decimal.Decimal
		places int32
		want   string // "" means nil
	}{
		{"both present", decPtr(t, "10"), decPtr(t, "55.50"), 2, "555.00"},
		{"rounding half away from zero", decPtr(t, "3"), decPtr(t, "0.125"), 2, "0.38"},
		{"rounds down", decPtr(t, "3"), decPtr(t, "0.1249"), 2, "0.37"},
		{"zero quantity", decPtr(t, "0"), decPtr(t, "100"), 2, "0.00"},
		{"nil quantity", nil, decPtr(t, "100"), 2, ""},
		{"nil rate", decPtr(t, "10"), nil, 2, ""},
		{"both nil", nil, nil, 2, ""},
		{"zero places", decPtr(t, "2"), decPtr(t, "1.75"), 0, "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Amount(tt.qty, tt.rate, tt.places)
			if tt.want == "" {
				if got != nil {
					t.Errorf("Amount() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Amount() = nil, want %s", tt.want)
			}
			if got.StringFixed(tt.places) != tt.want {
				t.Errorf("Amount() = %s, want %s", got.StringFixed(tt.places), tt.want)
			}
		})
	}
}

func TestComputeSubtotals(t *testing.T) {
	records := []LineRecord{
		{Kind: KindSectionHeader, Section: "Groundworks"},
		{Kind: KindLineItem, Section: "Groundworks", Category: "Labour", Amount: decPtr(t, "100.00")},
		{Kind: KindLineItem, Section: "Groundworks", Category: "Material", Amount: decPtr(t, "50.00")},
		{Kind: KindLineItem, Section: "Structure", Category: "Labour", Amount: decPtr(t, "25.50")},
		{Kind: KindLineItem, Section: "Structure", Category: "Labour", Amount: nil}, // undefined amount
	}

	subs := ComputeSubtotals(records, 2)

	if got := subs.BySection["Groundworks"].StringFixed(2); got != "150.00" {
		t.Errorf("BySection[Groundworks] = %s, want 150.00", got)
	}
	if got := subs.BySection["Structure"].StringFixed(2); got != "25.50" {
		t.Errorf("BySection[Structure] = %s, want 25.50", got)
	}
	if got := subs.ByCategory["Labour"].StringFixed(2); got != "125.50" {
		t.Errorf("ByCategory[Labour] = %s, want 125.50", got)
	}
	if got := subs.ByCategory["Material"].StringFixed(2); got != "50.00" {
		t.Errorf("ByCategory[Material] = %s, want 50.00", got)
	}
	if got := subs.Grand.StringFixed(2); got != "175.50" {
		t.Errorf("Grand = %s, want 175.50", got)
	}

	// The header contributed nothing; only two section keys exist.
	names := subs.SectionNames()
	if len(names) != 2 || names[0] != "Groundworks" || names[1] != "Structure" {
		t.Errorf("SectionNames() = %v", names)
	}
}

func TestComputeSubtotals_Empty(t *testing.T) {
	subs := ComputeSubtotals(nil, 2)
	if !subs.Grand.IsZero() {
		t.Errorf("Grand = %s, want 0", subs.Grand)
	}
	if len(subs.BySection) != 0 || len(subs.ByCategory) != 0 {
		t.Errorf("maps not empty: %v %v", subs.BySection, subs.ByCategory)
	}
}

func TestAddOns_Cascade(t *testing.T) {
	cfg := AddOnConfig{
		PrelimsPct:       dec(t, "10"),
		ContingencyPct:   dec(t, "5"),
		ProfitPct:        dec(t, "10"),
		TaxPct:           dec(t, "6"),
		RoundingDecimals: 2,
	}

	got := AddOns(dec(t, "1000"), cfg)

	want := map[string]string{
		"Subtotal":    "1000.00",
		"Prelims":     "100.00",
		"Contingency": "55.00",
		"Profit":      "115.50",
		"Tax":         "76.23",
		"GrandTotal":  "1346.73",
	}
	checks := map[string]decimal.Decimal{
		"Subtotal":    got.Subtotal,
		"Prelims":     got.Prelims,
		"Contingency": got.Contingency,
		"Profit":      got.Profit,
		"Tax":         got.Tax,
		"GrandTotal":  got.GrandTotal,
	}
	for name, d := range checks {
		if d.StringFixed(2) != want[name] {
			t.Errorf("%s = %s, want %s", name, d.StringFixed(2), want[name])
		}
	}
}

func TestAddOns_ZeroPercentages(t *testing.T) {
	cfg := AddOnConfig{RoundingDecimals: 2}
	got := AddOns(dec(t, "250.75"), cfg)

	if got.GrandTotal.StringFixed(2) != "250.75" {
		t.Errorf("GrandTotal = %s, want 250.75", got.GrandTotal.StringFixed(2))
	}
	if !got.Prelims.IsZero() || !got.Contingency.IsZero() || !got.Profit.IsZero() || !got.Tax.IsZero() {
		t.Errorf("zero-percentage cascade produced non-zero add-ons: %+v", got)
	}
}

// Each figure is rounded independently from the full-precision cascade, so
// the rounded components need not sum to the rounded grand total.
func TestAddOns_IndependentRounding(t *testing.T) {
	cfg := AddOnConfig{
		PrelimsPct:       dec(t, "3.333"),
		ContingencyPct:   dec(t, "3.333"),
		ProfitPct:        dec(t, "3.333"),
		TaxPct:           dec(t, "3.333"),
		RoundingDecimals: 2,
	}

	got := AddOns(dec(t, "100.01"), cfg)

	// Grand total comes from the unrounded cascade.
	full := dec(t, "100.01").
		Mul(dec(t, "1.03333")).
		Mul(dec(t, "1.03333")).
		Mul(dec(t, "1.03333")).
		Mul(dec(t, "1.03333"))
	if got.GrandTotal.StringFixed(2) != full.Round(2).StringFixed(2) {
		t.Errorf("GrandTotal = %s, want %s (full-precision cascade, rounded once)",
			got.GrandTotal.StringFixed(2), full.Round(2).StringFixed(2))
	}
}

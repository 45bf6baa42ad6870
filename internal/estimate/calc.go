package estimate

// calc.go is the calculation engine: pure, deterministic, no I/O.
//
// All monetary arithmetic runs on decimal.Decimal. The add-on cascade is
// computed in full precision and each returned figure is rounded
// independently at the point of return, so the grand total is not guaranteed
// to equal the sum of the other rounded figures. That is the intended
// financial policy, not an artifact.

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Amount derives a line amount from quantity and rate, rounded to the given
// number of decimal places. If either operand is nil the amount is nil.
func Amount(quantity, rate *decimal.Decimal, places int32) *decimal.Decimal {
	if quantity == nil || rate == nil {
		return nil
	}
	a := quantity.Mul(*rate).Round(places)
	return &a
}

// Subtotals aggregates the amounts of line-item records by section and by
// category, plus a grand subtotal. Section headers and records without an
// amount contribute nothing. Each grouped sum and the grand subtotal are
// independently rounded at the end; the inputs are already rounded per row,
// so this is idempotent.
type Subtotals struct {
	BySection  map[string]decimal.Decimal `json:"bySection"`
	ByCategory map[string]decimal.Decimal `json:"byCategory"`
	Grand      decimal.Decimal            `json:"grand"`
}

// ComputeSubtotals sums line-item amounts grouped by section and category.
func ComputeSubtotals(records []LineRecord, places int32) Subtotals {
	bySection := make(map[string]decimal.Decimal)
	byCategory := make(map[string]decimal.Decimal)
	grand := decimal.Zero

	for _, rec := range records {
		if rec.Kind != KindLineItem || rec.Amount == nil {
			continue
		}
		amt := *rec.Amount
		bySection[rec.Section] = bySection[rec.Section].Add(amt)
		byCategory[rec.Category] = byCategory[rec.Category].Add(amt)
		grand = grand.Add(amt)
	}

	for k, v := range bySection {
		bySection[k] = v.Round(places)
	}
	for k, v := range byCategory {
		byCategory[k] = v.Round(places)
	}

	return Subtotals{
		BySection:  bySection,
		ByCategory: byCategory,
		Grand:      grand.Round(places),
	}
}

// SectionNames returns the section keys in sorted order, for stable output.
func (s Subtotals) SectionNames() []string {
	names := make([]string, 0, len(s.BySection))
	for name := range s.BySection {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddOnBreakdown is the result of applying the percentage cascade to a
// subtotal. All six figures are rounded to the configured precision.
type AddOnBreakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Prelims     decimal.Decimal `json:"prelims"`
	Contingency decimal.Decimal `json:"contingency"`
	Profit      decimal.Decimal `json:"profit"`
	Tax         decimal.Decimal `json:"tax"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
}

// AddOns applies the strictly sequential percentage cascade: each stage
// compounds on the running total of all prior stages, computed in full
// precision. Every returned figure is rounded independently.
func AddOns(subtotal decimal.Decimal, cfg AddOnConfig) AddOnBreakdown {
	places := cfg.RoundingDecimals

	prelims := subtotal.Mul(cfg.PrelimsPct).Div(hundred)
	base1 := subtotal.Add(prelims)

	contingency := base1.Mul(cfg.ContingencyPct).Div(hundred)
	base2 := base1.Add(contingency)

	profit := base2.Mul(cfg.ProfitPct).Div(hundred)
	base3 := base2.Add(profit)

	tax := base3.Mul(cfg.TaxPct).Div(hundred)
	grandTotal := base3.Add(tax)

	return AddOnBreakdown{
		Subtotal:    subtotal.Round(places),
		Prelims:     prelims.Round(places),
		Contingency: contingency.Round(places),
		Profit:      profit.Round(places),
		Tax:         tax.Round(places),
		GrandTotal:  grandTotal.Round(places),
	}
}

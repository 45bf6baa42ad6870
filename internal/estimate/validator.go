package estimate

// validator.go applies the per-row business rules to a mapped table.
//
// Issues are always collected and returned, never raised as Go errors: an
// error-severity issue excludes its row from ValidRows and blocks commit,
// a warning does neither. The only whole-file rule is the row-count ceiling,
// which short-circuits validation entirely.

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hallvard-mk/estimo/internal/tabular"
)

// DefaultMaxRows is the row-count ceiling for one import. It bounds memory
// and per-row validation cost; files above it are rejected wholesale.
const DefaultMaxRows = 2000

// DefaultFallbackCategory absorbs unrecognized category values.
const DefaultFallbackCategory = "General"

// defaultCategories is the recognized category set, matched case-insensitively.
var defaultCategories = []string{
	"Labour", "Material", "Plant", "Subcontract", "Provisional", "General",
}

// ValidatorOptions tune the validator. Zero values select the defaults.
type ValidatorOptions struct {
	MaxRows          int
	Categories       []string
	FallbackCategory string
}

// Validator checks mapped rows against the import business rules.
type Validator struct {
	maxRows    int
	categories map[string]string // normalized -> canonical
	fallback   string
}

// NewValidator builds a validator from options.
func NewValidator(opts ValidatorOptions) *Validator {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.FallbackCategory == "" {
		opts.FallbackCategory = DefaultFallbackCategory
	}
	cats := opts.Categories
	if len(cats) == 0 {
		cats = defaultCategories
	}
	byNorm := make(map[string]string, len(cats))
	for _, c := range cats {
		byNorm[strings.ToLower(c)] = c
	}
	return &Validator{
		maxRows:    opts.MaxRows,
		categories: byNorm,
		fallback:   opts.FallbackCategory,
	}
}

// Validate applies every rule to every row of the table under the given
// mapping. The display line of row i is i+2, accounting for the header row.
func (v *Validator) Validate(table *tabular.RawTable, mapping FieldMapping) *ValidationResult {
	result := &ValidationResult{
		ValidRows:       []ValidatedRow{},
		Errors:          []Issue{},
		Warnings:        []Issue{},
		TotalParsedRows: len(table.Rows),
	}

	if len(table.Rows) > v.maxRows {
		result.Errors = append(result.Errors, Issue{
			Severity: SeverityError,
			Message:  fmt.Sprintf("file has %d data rows, exceeding the limit of %d", len(table.Rows), v.maxRows),
		})
		return result
	}

	for i, raw := range table.Rows {
		line := i + 2
		row, issues := v.validateRow(line, raw, mapping)
		hasError := false
		for _, issue := range issues {
			if issue.Severity == SeverityError {
				hasError = true
				result.Errors = append(result.Errors, issue)
			} else {
				result.Warnings = append(result.Warnings, issue)
			}
		}
		if !hasError {
			result.ValidRows = append(result.ValidRows, row)
		}
	}

	return result
}

// validateRow applies the per-row rules and returns the normalized row plus
// every issue found. The row is only usable when no issue has error severity.
func (v *Validator) validateRow(line int, raw []string, mapping FieldMapping) (ValidatedRow, []Issue) {
	cell := func(f Field) string {
		col, ok := mapping[f]
		if !ok || col >= len(raw) {
			return ""
		}
		return strings.TrimSpace(raw[col])
	}

	var issues []Issue
	fail := func(f Field, msg string) {
		issues = append(issues, Issue{Line: line, Field: f, Severity: SeverityError, Message: msg})
	}
	warn := func(f Field, msg string) {
		issues = append(issues, Issue{Line: line, Field: f, Severity: SeverityWarning, Message: msg})
	}

	row := ValidatedRow{Line: line}

	// Row kind: defaults to LineItem, anything unrecognized is an error.
	switch kind := cell(FieldRowType); {
	case kind == "" || strings.EqualFold(kind, string(KindLineItem)):
		row.Kind = KindLineItem
	case strings.EqualFold(kind, string(KindSectionHeader)):
		row.Kind = KindSectionHeader
	default:
		fail(FieldRowType, fmt.Sprintf("unrecognized row type %q (expected LineItem or SectionHeader)", kind))
	}

	row.Description = cell(FieldDescription)
	if row.Description == "" {
		fail(FieldDescription, "description is required")
	}

	// Action: anything other than DELETE is treated as UPSERT.
	row.Action = ActionUpsert
	if strings.EqualFold(cell(FieldAction), string(ActionDelete)) {
		row.Action = ActionDelete
	}

	row.ExternalKey = cell(FieldExternalKey)
	if row.Action == ActionDelete && row.ExternalKey == "" {
		fail(FieldExternalKey, "DELETE rows require an external key")
	}

	row.Section = cell(FieldSection)
	row.Measurement = cell(FieldMeasurement)
	row.Assumptions = cell(FieldAssumptions)

	if row.Kind == KindLineItem {
		row.Unit = cell(FieldUnit)
		if row.Unit == "" && row.Action != ActionDelete {
			fail(FieldUnit, "unit is required for line items")
		}

		row.Quantity = v.parseNumber(cell(FieldQuantity), FieldQuantity, &issues, line)
		row.Rate = v.parseNumber(cell(FieldRate), FieldRate, &issues, line)

		if cat := cell(FieldCategory); cat == "" {
			row.Category = v.fallback
		} else if canonical, ok := v.categories[strings.ToLower(cat)]; ok {
			row.Category = canonical
		} else {
			row.Category = v.fallback
			warn(FieldCategory, fmt.Sprintf("unknown category %q, using %q", cat, v.fallback))
		}
	}

	// Amounts are always derived from quantity and rate; a supplied value is
	// never imported.
	if amt := cell(FieldAmount); amt != "" {
		warn(FieldAmount, "amount column is ignored; amounts are derived from quantity and rate")
	}

	// Section headers never carry item-level fields, regardless of what the
	// file supplied.
	if row.Kind == KindSectionHeader {
		row.Unit = ""
		row.Quantity = nil
		row.Rate = nil
		row.Category = ""
	}

	return row, issues
}

// parseNumber parses an optional non-negative decimal. Absent means nil, not
// zero; a present-but-unparseable or negative value is an error.
func (v *Validator) parseNumber(raw string, field Field, issues *[]Issue, line int) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		*issues = append(*issues, Issue{
			Line: line, Field: field, Severity: SeverityError,
			Message: fmt.Sprintf("%q is not a valid number", raw),
		})
		return nil
	}
	if d.IsNegative() {
		*issues = append(*issues, Issue{
			Line: line, Field: field, Severity: SeverityError,
			Message: fmt.Sprintf("%s must not be negative", field),
		})
		return nil
	}
	return &d
}

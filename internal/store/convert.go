// Package store persists the estimate domain: revisions, line records,
// add-on configuration, import reports and the audit log. The primary
// implementation is PostgreSQL via pgx; an in-memory implementation backs
// tests and previews.
package store

// convert.go provides conversions between domain values and pgtype values.
// All ToPg* helpers return Valid=false for absent input so the database
// stores NULL rather than zero values.

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid for empty or whitespace-only input.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// TextToString unwraps a pgtype.Text, returning "" for NULL.
func TextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// ToPgNumeric converts an optional decimal to pgtype.Numeric without loss:
// the coefficient and exponent carry over directly.
func ToPgNumeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{Valid: false}
	}
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// ToPgNumericVal converts a required decimal to pgtype.Numeric.
func ToPgNumericVal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// NumericToDecimal converts a pgtype.Numeric back to an optional decimal.
// NULL maps to nil, not zero.
func NumericToDecimal(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return nil
	}
	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return &d
}

// NumericToDecimalVal converts a pgtype.Numeric to a decimal, with NULL
// mapping to zero.
func NumericToDecimalVal(n pgtype.Numeric) decimal.Decimal {
	if d := NumericToDecimal(n); d != nil {
		return *d
	}
	return decimal.Zero
}

// ToPgUUID converts a uuid.UUID to pgtype.UUID. The zero UUID maps to NULL.
func ToPgUUID(u uuid.UUID) pgtype.UUID {
	if u == uuid.Nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: u, Valid: true}
}

// PgUUIDToUUID converts a pgtype.UUID back, with NULL mapping to uuid.Nil.
func PgUUIDToUUID(u pgtype.UUID) uuid.UUID {
	if !u.Valid {
		return uuid.Nil
	}
	return uuid.UUID(u.Bytes)
}

// ToPgTimestamptz converts a time to pgtype.Timestamptz. The zero time maps
// to NULL.
func ToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

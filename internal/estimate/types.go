// Package estimate implements the bulk import and reconciliation pipeline for
// cost tables: semantic column mapping, row validation, the cascading
// calculation engine, and key-based reconciliation against a revision's
// persisted line records. It has no UI dependencies.
package estimate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RowKind is the kind of a cost-table row. Only line items carry quantities,
// rates and amounts; section headers only structure the table.
type RowKind string

const (
	KindLineItem      RowKind = "LineItem"
	KindSectionHeader RowKind = "SectionHeader"
)

// RowAction is what an import row asks the reconciler to do.
type RowAction string

const (
	ActionUpsert RowAction = "UPSERT"
	ActionDelete RowAction = "DELETE"
)

// Status is the governance state of a line record.
type Status string

const (
	StatusDraft Status = "Draft"
	StatusFinal Status = "Final"
)

// Field names a semantic column of the import schema.
type Field string

const (
	FieldRowType     Field = "row_type"
	FieldExternalKey Field = "external_key"
	FieldSection     Field = "section"
	FieldDescription Field = "description"
	FieldUnit        Field = "unit"
	FieldQuantity    Field = "quantity"
	FieldRate        Field = "rate"
	FieldAmount      Field = "amount"
	FieldCategory    Field = "category"
	FieldMeasurement Field = "measurement"
	FieldAssumptions Field = "assumptions"
	FieldAction      Field = "action"
)

// Severity classifies a validation issue. Errors block commit; warnings are
// surfaced to the operator but never block.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one classified validation finding. Line is the 1-indexed display
// line of the source file, accounting for the header row.
type Issue struct {
	Line     int      `json:"line"`
	Field    Field    `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidatedRow is the typed, normalized form of one import row that passed
// every rule. Quantity and Rate use nil for "not provided"; zero is a real
// value. Section headers never carry unit, quantity, rate or category.
type ValidatedRow struct {
	Line        int              `json:"line"`
	Action      RowAction        `json:"action"`
	Kind        RowKind          `json:"kind"`
	ExternalKey string           `json:"externalKey,omitempty"`
	Section     string           `json:"section,omitempty"`
	Description string           `json:"description"`
	Unit        string           `json:"unit,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	Category    string           `json:"category,omitempty"`
	Measurement string           `json:"measurement,omitempty"`
	Assumptions string           `json:"assumptions,omitempty"`
}

// ValidationResult aggregates the outcome of validating one parsed table.
type ValidationResult struct {
	ValidRows       []ValidatedRow `json:"validRows"`
	Errors          []Issue        `json:"errors"`
	Warnings        []Issue        `json:"warnings"`
	TotalParsedRows int            `json:"totalParsedRows"`
}

// Blocked reports whether commit is disallowed for this result.
func (r *ValidationResult) Blocked() bool { return len(r.Errors) > 0 }

// LineRecord is a persisted cost-table row owned by exactly one revision.
// Amount is always derived (quantity * rate rounded to the revision's
// precision), never imported directly.
type LineRecord struct {
	ID          uuid.UUID        `json:"id"`
	RevisionID  uuid.UUID        `json:"revisionId"`
	Kind        RowKind          `json:"kind"`
	ItemNumber  string           `json:"itemNumber"`
	Section     string           `json:"section,omitempty"`
	Description string           `json:"description"`
	Unit        string           `json:"unit,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Measurement string           `json:"measurement,omitempty"`
	Assumptions string           `json:"assumptions,omitempty"`
	Category    string           `json:"category,omitempty"`
	Status      Status           `json:"status"`
	SortOrder   int              `json:"sortOrder"`
	ExternalKey string           `json:"externalKey,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Revision is a snapshot of line records for one estimate. Once frozen it can
// no longer be the target of an import.
type Revision struct {
	ID              uuid.UUID `json:"id"`
	RevisionGroupID uuid.UUID `json:"revisionGroupId"`
	Name            string    `json:"name"`
	Frozen          bool      `json:"frozen"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AddOnConfig holds the cascading percentage surcharges for one top-level
// estimate and the rounding precision applied to every monetary figure.
// All percentages are in [0,100].
type AddOnConfig struct {
	RevisionGroupID  uuid.UUID       `json:"revisionGroupId"`
	PrelimsPct       decimal.Decimal `json:"prelimsPct"`
	ContingencyPct   decimal.Decimal `json:"contingencyPct"`
	ProfitPct        decimal.Decimal `json:"profitPct"`
	TaxPct           decimal.Decimal `json:"taxPct"`
	RoundingDecimals int32           `json:"roundingDecimals"`
}

// ImportReport is the immutable audit artifact produced by one commit.
type ImportReport struct {
	ID             uuid.UUID `json:"id"`
	RevisionID     uuid.UUID `json:"revisionId"`
	JobID          uuid.UUID `json:"jobId"`
	ActorID        string    `json:"actorId"`
	RowsCreated    int       `json:"rowsCreated"`
	RowsUpdated    int       `json:"rowsUpdated"`
	RowsDeleted    int       `json:"rowsDeleted"`
	WarningCount   int       `json:"warningCount"`
	TotalProcessed int       `json:"totalProcessed"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuditEntry is one append-only audit-log record.
type AuditEntry struct {
	ID              uuid.UUID       `json:"id"`
	RevisionGroupID uuid.UUID       `json:"revisionGroupId"`
	ActorID         string          `json:"actorId"`
	Action          string          `json:"action"`
	EntityRef       string          `json:"entityRef"`
	Before          json.RawMessage `json:"before,omitempty"`
	After           json.RawMessage `json:"after,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ApplyMode selects how the reconciler's staged plan is written out.
type ApplyMode string

const (
	// ApplyAtomic applies the whole plan inside one backing-store
	// transaction; a failure leaves the revision untouched.
	ApplyAtomic ApplyMode = "atomic"
	// ApplyLegacy writes operations one at a time with no rollback; a
	// failure leaves earlier writes persisted and later rows unattempted.
	ApplyLegacy ApplyMode = "legacy"
)

// ImportContext carries everything a commit needs about its target. It is
// always passed explicitly; the pipeline never reads shared state to decide
// which revision it is mutating.
type ImportContext struct {
	RevisionID       uuid.UUID
	RevisionGroupID  uuid.UUID
	JobID            uuid.UUID
	ActorID          string
	RoundingDecimals int32
	Mode             ApplyMode
}

// Store is the persistence collaborator the pipeline writes through.
// Implemented by the pgx-backed store and by an in-memory store for tests.
type Store interface {
	GetRevision(ctx context.Context, id uuid.UUID) (Revision, error)
	GetAddOnConfig(ctx context.Context, revisionGroupID uuid.UUID) (AddOnConfig, error)

	GetLineRecords(ctx context.Context, revisionID uuid.UUID) ([]LineRecord, error)
	CreateLineRecord(ctx context.Context, rec LineRecord) (LineRecord, error)
	UpdateLineRecord(ctx context.Context, rec LineRecord) (LineRecord, error)
	DeleteLineRecord(ctx context.Context, id uuid.UUID) error

	SaveImportReport(ctx context.Context, report ImportReport) error
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
	ListAuditEntries(ctx context.Context, revisionGroupID uuid.UUID, limit int) ([]AuditEntry, error)

	// StoreOriginalFile persists the uploaded bytes alongside the job.
	// Callers treat failures as non-fatal.
	StoreOriginalFile(ctx context.Context, revisionGroupID, jobID uuid.UUID, name string, data []byte) (string, error)

	// InTx runs fn against a transactional view of the store. Stores
	// without transaction support run fn directly.
	InTx(ctx context.Context, fn func(Store) error) error
}

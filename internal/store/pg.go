package store

// pg.go is the PostgreSQL implementation of estimate.Store, built on pgx.
// Queries are written inline against the schema in schema.sql. The store is
// usable both over a pool and inside a transaction: InTx returns a copy bound
// to a pgx.Tx so the reconciler's atomic apply mode runs every staged write
// in one transaction.

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hallvard-mk/estimo/internal/estimate"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the subset of pgx operations the store needs.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PG is the PostgreSQL-backed store.
type PG struct {
	db DBTX
	// pool is non-nil only for the root store; transactional copies leave
	// it nil so InTx cannot nest.
	pool *pgxpool.Pool
	// filesDir is where original uploads are kept. Empty disables storage.
	filesDir string
}

// NewPG creates a store over a connection pool. filesDir may be empty to
// disable original-file storage.
func NewPG(pool *pgxpool.Pool, filesDir string) *PG {
	return &PG{db: pool, pool: pool, filesDir: filesDir}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PG) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InTx runs fn against a copy of the store bound to one transaction.
// Called on a transactional copy it runs fn directly.
func (s *PG) InTx(ctx context.Context, fn func(estimate.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := &PG{db: tx, filesDir: s.filesDir}
	if err := fn(txStore); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ----------------------------------------------------------------------------
// Revisions and configuration
// ----------------------------------------------------------------------------

func (s *PG) GetRevision(ctx context.Context, id uuid.UUID) (estimate.Revision, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, revision_group_id, name, frozen, created_at
		 FROM revisions WHERE id = $1`, ToPgUUID(id))

	var rev estimate.Revision
	var revID, groupID pgtype.UUID
	var createdAt pgtype.Timestamptz
	if err := row.Scan(&revID, &groupID, &rev.Name, &rev.Frozen, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return estimate.Revision{}, estimate.ErrRevisionNotFound
		}
		return estimate.Revision{}, err
	}
	rev.ID = PgUUIDToUUID(revID)
	rev.RevisionGroupID = PgUUIDToUUID(groupID)
	rev.CreatedAt = createdAt.Time
	return rev, nil
}

func (s *PG) GetAddOnConfig(ctx context.Context, revisionGroupID uuid.UUID) (estimate.AddOnConfig, error) {
	row := s.db.QueryRow(ctx,
		`SELECT revision_group_id, prelims_pct, contingency_pct, profit_pct, tax_pct, rounding_decimals
		 FROM addon_configs WHERE revision_group_id = $1`, ToPgUUID(revisionGroupID))

	var cfg estimate.AddOnConfig
	var groupID pgtype.UUID
	var prelims, contingency, profit, tax pgtype.Numeric
	if err := row.Scan(&groupID, &prelims, &contingency, &profit, &tax, &cfg.RoundingDecimals); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Groups without explicit configuration use zero add-ons at
			// two decimal places.
			return estimate.AddOnConfig{RevisionGroupID: revisionGroupID, RoundingDecimals: 2}, nil
		}
		return estimate.AddOnConfig{}, err
	}
	cfg.RevisionGroupID = PgUUIDToUUID(groupID)
	cfg.PrelimsPct = NumericToDecimalVal(prelims)
	cfg.ContingencyPct = NumericToDecimalVal(contingency)
	cfg.ProfitPct = NumericToDecimalVal(profit)
	cfg.TaxPct = NumericToDecimalVal(tax)
	return cfg, nil
}

// ----------------------------------------------------------------------------
// Line records
// ----------------------------------------------------------------------------

const lineRecordColumns = `id, revision_id, kind, item_number, section, description,
	unit, quantity, rate, amount, measurement, assumptions, category,
	status, sort_order, external_key, created_at, updated_at`

func (s *PG) GetLineRecords(ctx context.Context, revisionID uuid.UUID) ([]estimate.LineRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+lineRecordColumns+`
		 FROM line_records WHERE revision_id = $1
		 ORDER BY sort_order, created_at`, ToPgUUID(revisionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]estimate.LineRecord, 0)
	for rows.Next() {
		rec, err := scanLineRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PG) CreateLineRecord(ctx context.Context, rec estimate.LineRecord) (estimate.LineRecord, error) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO line_records (`+lineRecordColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		ToPgUUID(rec.ID), ToPgUUID(rec.RevisionID), string(rec.Kind), rec.ItemNumber,
		rec.Section, rec.Description, rec.Unit,
		ToPgNumeric(rec.Quantity), ToPgNumeric(rec.Rate), ToPgNumeric(rec.Amount),
		rec.Measurement, rec.Assumptions, rec.Category,
		string(rec.Status), rec.SortOrder, ToPgText(rec.ExternalKey),
		ToPgTimestamptz(rec.CreatedAt), ToPgTimestamptz(rec.UpdatedAt))
	if err != nil {
		return estimate.LineRecord{}, err
	}
	return rec, nil
}

func (s *PG) UpdateLineRecord(ctx context.Context, rec estimate.LineRecord) (estimate.LineRecord, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE line_records SET
		    kind = $2, item_number = $3, section = $4, description = $5,
		    unit = $6, quantity = $7, rate = $8, amount = $9,
		    measurement = $10, assumptions = $11, category = $12,
		    sort_order = $13, external_key = $14, updated_at = $15
		 WHERE id = $1`,
		ToPgUUID(rec.ID), string(rec.Kind), rec.ItemNumber, rec.Section,
		rec.Description, rec.Unit,
		ToPgNumeric(rec.Quantity), ToPgNumeric(rec.Rate), ToPgNumeric(rec.Amount),
		rec.Measurement, rec.Assumptions, rec.Category,
		rec.SortOrder, ToPgText(rec.ExternalKey), ToPgTimestamptz(rec.UpdatedAt))
	if err != nil {
		return estimate.LineRecord{}, err
	}
	if tag.RowsAffected() == 0 {
		return estimate.LineRecord{}, fmt.Errorf("line record %s not found", rec.ID)
	}
	return rec, nil
}

func (s *PG) DeleteLineRecord(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM line_records WHERE id = $1`, ToPgUUID(id))
	return err
}

// ----------------------------------------------------------------------------
// Reports and audit log
// ----------------------------------------------------------------------------

func (s *PG) SaveImportReport(ctx context.Context, report estimate.ImportReport) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO import_reports
		   (id, revision_id, job_id, actor_id, rows_created, rows_updated,
		    rows_deleted, warning_count, total_processed, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		ToPgUUID(report.ID), ToPgUUID(report.RevisionID), ToPgUUID(report.JobID),
		report.ActorID, report.RowsCreated, report.RowsUpdated, report.RowsDeleted,
		report.WarningCount, report.TotalProcessed, ToPgTimestamptz(report.CreatedAt))
	return err
}

func (s *PG) AppendAuditEntry(ctx context.Context, entry estimate.AuditEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_log
		   (id, revision_group_id, actor_id, action, entity_ref, before_data, after_data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ToPgUUID(entry.ID), ToPgUUID(entry.RevisionGroupID), entry.ActorID,
		entry.Action, entry.EntityRef, []byte(entry.Before), []byte(entry.After),
		ToPgTimestamptz(entry.CreatedAt))
	return err
}

func (s *PG) ListAuditEntries(ctx context.Context, revisionGroupID uuid.UUID, limit int) ([]estimate.AuditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, revision_group_id, actor_id, action, entity_ref, before_data, after_data, created_at
		 FROM audit_log WHERE revision_group_id = $1
		 ORDER BY created_at DESC LIMIT $2`, ToPgUUID(revisionGroupID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]estimate.AuditEntry, 0)
	for rows.Next() {
		var e estimate.AuditEntry
		var id, groupID pgtype.UUID
		var createdAt pgtype.Timestamptz
		var before, after []byte
		if err := rows.Scan(&id, &groupID, &e.ActorID, &e.Action, &e.EntityRef, &before, &after, &createdAt); err != nil {
			return nil, err
		}
		e.ID = PgUUIDToUUID(id)
		e.RevisionGroupID = PgUUIDToUUID(groupID)
		e.Before = before
		e.After = after
		e.CreatedAt = createdAt.Time
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StoreOriginalFile writes the uploaded bytes under the configured directory,
// grouped by revision group. Callers treat failures as non-fatal.
func (s *PG) StoreOriginalFile(_ context.Context, revisionGroupID, jobID uuid.UUID, name string, data []byte) (string, error) {
	if s.filesDir == "" {
		return "", errors.New("original-file storage is not configured")
	}

	// Uploaded names are untrusted; only the base name is kept.
	safe := filepath.Base(name)
	dir := filepath.Join(s.filesDir, revisionGroupID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(dir, jobID.String()+"_"+safe)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write original file: %w", err)
	}
	return path, nil
}

// ----------------------------------------------------------------------------
// Scan helpers
// ----------------------------------------------------------------------------

func scanLineRecord(rows pgx.Rows) (estimate.LineRecord, error) {
	var rec estimate.LineRecord
	var kind, status string
	var id, revisionID pgtype.UUID
	var quantity, rate, amount pgtype.Numeric
	var externalKey pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz

	err := rows.Scan(
		&id, &revisionID, &kind, &rec.ItemNumber, &rec.Section, &rec.Description,
		&rec.Unit, &quantity, &rate, &amount, &rec.Measurement, &rec.Assumptions,
		&rec.Category, &status, &rec.SortOrder, &externalKey, &createdAt, &updatedAt,
	)
	if err != nil {
		return estimate.LineRecord{}, err
	}

	rec.ID = PgUUIDToUUID(id)
	rec.RevisionID = PgUUIDToUUID(revisionID)
	rec.Kind = estimate.RowKind(kind)
	rec.Quantity = NumericToDecimal(quantity)
	rec.Rate = NumericToDecimal(rate)
	rec.Amount = NumericToDecimal(amount)
	rec.Status = estimate.Status(status)
	rec.ExternalKey = TextToString(externalKey)
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time
	return rec, nil
}

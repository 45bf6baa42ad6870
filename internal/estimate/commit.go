package estimate

// commit.go applies a staged reconciliation plan to the store and emits the
// governed artifacts: the ImportReport and one audit entry carrying it.
//
// Two apply modes exist. Atomic wraps the whole plan in one backing-store
// transaction. Legacy reproduces the historic sequential behavior: each write
// is issued independently, a failure propagates immediately, earlier writes
// stay persisted and later operations are never attempted.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditActionImport is the audit action recorded for a committed import.
const AuditActionImport = "import.commit"

// Committer writes reconciliation plans through the persistence collaborator.
type Committer struct {
	store Store
	now   func() time.Time
}

// NewCommitter creates a committer over the given store.
func NewCommitter(store Store) *Committer {
	return &Committer{store: store, now: time.Now}
}

// Commit reconciles validated rows into the target revision and persists the
// result. warningCount is the validator's warning tally, carried into the
// report. Persistence failures propagate to the caller unwrapped of any
// compensation; in legacy mode that leaves partial state by design.
func (c *Committer) Commit(ctx context.Context, ictx ImportContext, rows []ValidatedRow, warningCount int) (*ImportReport, error) {
	existing, err := c.store.GetLineRecords(ctx, ictx.RevisionID)
	if err != nil {
		return nil, fmt.Errorf("load existing records: %w", err)
	}

	now := c.now().UTC()
	plan := BuildPlan(rows, existing, ictx.RevisionID, ictx.RoundingDecimals, now)

	if ictx.Mode == ApplyLegacy {
		if err := applyPlan(ctx, c.store, plan); err != nil {
			return nil, err
		}
	} else {
		if err := c.store.InTx(ctx, func(s Store) error {
			return applyPlan(ctx, s, plan)
		}); err != nil {
			return nil, err
		}
	}

	report := ImportReport{
		ID:             uuid.New(),
		RevisionID:     ictx.RevisionID,
		JobID:          ictx.JobID,
		ActorID:        ictx.ActorID,
		RowsCreated:    plan.Created,
		RowsUpdated:    plan.Updated,
		RowsDeleted:    plan.Deleted,
		WarningCount:   warningCount,
		TotalProcessed: len(rows),
		CreatedAt:      now,
	}

	if err := c.store.SaveImportReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save import report: %w", err)
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := c.store.AppendAuditEntry(ctx, AuditEntry{
		ID:              uuid.New(),
		RevisionGroupID: ictx.RevisionGroupID,
		ActorID:         ictx.ActorID,
		Action:          AuditActionImport,
		EntityRef:       "revision:" + ictx.RevisionID.String(),
		After:           payload,
		CreatedAt:       now,
	}); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	slog.Info("import committed",
		"revision_id", ictx.RevisionID,
		"job_id", ictx.JobID,
		"created", report.RowsCreated,
		"updated", report.RowsUpdated,
		"deleted", report.RowsDeleted,
		"warnings", report.WarningCount,
	)

	return &report, nil
}

// applyPlan issues the staged operations sequentially against the store.
func applyPlan(ctx context.Context, s Store, plan Plan) error {
	for _, op := range plan.Ops {
		var err error
		switch op.Kind {
		case OpCreate:
			_, err = s.CreateLineRecord(ctx, op.Record)
		case OpUpdate:
			_, err = s.UpdateLineRecord(ctx, op.Record)
		case OpDelete:
			err = s.DeleteLineRecord(ctx, op.Record.ID)
		}
		if err != nil {
			return fmt.Errorf("%s record %s: %w", op.Kind, op.Record.ID, err)
		}
	}
	return nil
}

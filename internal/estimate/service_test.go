package estimate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hallvard-mk/estimo/internal/estimate"
	"github.com/hallvard-mk/estimo/internal/store"
	"github.com/hallvard-mk/estimo/internal/tabular"
)

var sampleCSV = []byte(`Type,Ref,Section,Description,Unit,Qty,Rate,Category,Action
SectionHeader,S1,Groundworks,Groundworks,,,,,
LineItem,A,Groundworks,Excavation,m3,10,5,Labour,
LineItem,B,Groundworks,Backfill,m3,4,25,Material,
`)

func newFixture(t *testing.T) (*estimate.Service, *store.Memory, estimate.Revision) {
	t.Helper()
	mem := store.NewMemory()
	rev := estimate.Revision{ID: uuid.New(), RevisionGroupID: uuid.New(), Name: "Rev A"}
	mem.PutRevision(rev)
	svc := estimate.NewService(mem, estimate.ServiceOptions{})
	return svc, mem, rev
}

func startAndValidate(t *testing.T, svc *estimate.Service) uuid.UUID {
	t.Helper()
	info, err := svc.StartJob("estimate.csv", sampleCSV, tabular.FormatCSV, "")
	if err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	result, err := svc.ValidateJob(info.ID, nil)
	if err != nil {
		t.Fatalf("ValidateJob() error = %v", err)
	}
	if result.Blocked() {
		t.Fatalf("unexpected blocking issues: %v", result.Errors)
	}
	return info.ID
}

func TestService_StartJobProposesMapping(t *testing.T) {
	svc, _, _ := newFixture(t)

	info, err := svc.StartJob("estimate.csv", sampleCSV, tabular.FormatCSV, "")
	if err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	if info.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", info.RowCount)
	}
	if col, ok := info.ProposedMapping[estimate.FieldDescription]; !ok || col != 3 {
		t.Errorf("proposed description column = %d (ok=%v), want 3", col, ok)
	}
	if col, ok := info.ProposedMapping[estimate.FieldRowType]; !ok || col != 0 {
		t.Errorf("proposed row-type column = %d (ok=%v), want 0", col, ok)
	}
}

func TestService_CommitEndToEnd(t *testing.T) {
	svc, mem, rev := newFixture(t)
	jobID := startAndValidate(t, svc)
	ctx := context.Background()

	report, err := svc.CommitJob(ctx, jobID, rev.ID, "tester", estimate.ApplyAtomic)
	if err != nil {
		t.Fatalf("CommitJob() error = %v", err)
	}

	if report.RowsCreated != 3 || report.RowsUpdated != 0 || report.RowsDeleted != 0 {
		t.Errorf("report counters = %d/%d/%d, want 3/0/0",
			report.RowsCreated, report.RowsUpdated, report.RowsDeleted)
	}
	if report.TotalProcessed != 3 || report.WarningCount != 0 {
		t.Errorf("processed=%d warnings=%d, want 3 and 0", report.TotalProcessed, report.WarningCount)
	}

	records, err := mem.GetLineRecords(ctx, rev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[0].Kind != estimate.KindSectionHeader || records[0].ItemNumber != "1" {
		t.Errorf("records[0] = %+v, want section header numbered 1", records[0])
	}
	if records[1].ItemNumber != "1.1" || records[2].ItemNumber != "1.2" {
		t.Errorf("item numbers = %q,%q, want 1.1,1.2", records[1].ItemNumber, records[2].ItemNumber)
	}

	subs, _, err := svc.RevisionTotals(ctx, rev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := subs.BySection["Groundworks"].StringFixed(2); got != "150.00" {
		t.Errorf("section subtotal = %s, want 150.00", got)
	}

	if len(mem.Reports()) != 1 {
		t.Errorf("saved reports = %d, want 1", len(mem.Reports()))
	}
	entries, err := mem.ListAuditEntries(ctx, rev.RevisionGroupID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != estimate.AuditActionImport {
		t.Errorf("audit entries = %+v, want one %s entry", entries, estimate.AuditActionImport)
	}
	if len(mem.Files()) != 1 {
		t.Errorf("stored files = %d, want the original upload", len(mem.Files()))
	}

	// Committed jobs are dropped.
	if _, err := svc.CommitJob(ctx, jobID, rev.ID, "tester", estimate.ApplyAtomic); !errors.Is(err, estimate.ErrJobNotFound) {
		t.Errorf("second commit error = %v, want ErrJobNotFound", err)
	}
}

func TestService_ReimportUpdatesInsteadOfDuplicating(t *testing.T) {
	svc, mem, rev := newFixture(t)
	ctx := context.Background()

	jobID := startAndValidate(t, svc)
	if _, err := svc.CommitJob(ctx, jobID, rev.ID, "tester", estimate.ApplyAtomic); err != nil {
		t.Fatal(err)
	}

	jobID = startAndValidate(t, svc)
	report, err := svc.CommitJob(ctx, jobID, rev.ID, "tester", estimate.ApplyAtomic)
	if err != nil {
		t.Fatal(err)
	}
	if report.RowsCreated != 0 || report.RowsUpdated != 3 {
		t.Errorf("counters = %d created %d updated, want 0/3", report.RowsCreated, report.RowsUpdated)
	}

	records, _ := mem.GetLineRecords(ctx, rev.ID)
	if len(records) != 3 {
		t.Errorf("records = %d after reimport, want 3", len(records))
	}
}

func TestService_CommitRequiresValidation(t *testing.T) {
	svc, _, rev := newFixture(t)
	info, err := svc.StartJob("estimate.csv", sampleCSV, tabular.FormatCSV, "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.CommitJob(context.Background(), info.ID, rev.ID, "tester", estimate.ApplyAtomic)
	if !errors.Is(err, estimate.ErrNotValidated) {
		t.Errorf("error = %v, want ErrNotValidated", err)
	}
}

func TestService_CommitBlockedByErrors(t *testing.T) {
	svc, _, rev := newFixture(t)
	bad := []byte("Description,Unit,Qty\n,,x\n")
	info, err := svc.StartJob("bad.csv", bad, tabular.FormatCSV, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateJob(info.ID, nil); err != nil {
		t.Fatal(err)
	}

	_, err = svc.CommitJob(context.Background(), info.ID, rev.ID, "tester", estimate.ApplyAtomic)
	if !errors.Is(err, estimate.ErrBlockingIssues) {
		t.Errorf("error = %v, want ErrBlockingIssues", err)
	}
}

func TestService_CommitRequiresDescriptionMapping(t *testing.T) {
	svc, _, rev := newFixture(t)
	// Header-only file: validation is clean, but no description column exists.
	data := []byte("ColA,ColB\n")
	info, err := svc.StartJob("odd.csv", data, tabular.FormatCSV, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateJob(info.ID, estimate.FieldMapping{estimate.FieldQuantity: 0}); err != nil {
		t.Fatal(err)
	}

	_, err = svc.CommitJob(context.Background(), info.ID, rev.ID, "tester", estimate.ApplyAtomic)
	if !errors.Is(err, estimate.ErrDescriptionUnmapped) {
		t.Errorf("error = %v, want ErrDescriptionUnmapped", err)
	}
}

func TestService_FrozenRevisionRejected(t *testing.T) {
	svc, mem, rev := newFixture(t)
	rev.Frozen = true
	mem.PutRevision(rev)

	jobID := startAndValidate(t, svc)
	_, err := svc.CommitJob(context.Background(), jobID, rev.ID, "tester", estimate.ApplyAtomic)
	if !errors.Is(err, estimate.ErrRevisionFrozen) {
		t.Errorf("error = %v, want ErrRevisionFrozen", err)
	}
}

func TestService_UnknownRevision(t *testing.T) {
	svc, _, _ := newFixture(t)
	jobID := startAndValidate(t, svc)

	_, err := svc.CommitJob(context.Background(), jobID, uuid.New(), "tester", estimate.ApplyAtomic)
	if !errors.Is(err, estimate.ErrRevisionNotFound) {
		t.Errorf("error = %v, want ErrRevisionNotFound", err)
	}
}

func TestService_UnknownJob(t *testing.T) {
	svc, _, _ := newFixture(t)

	if _, err := svc.ValidateJob(uuid.New(), nil); !errors.Is(err, estimate.ErrJobNotFound) {
		t.Errorf("ValidateJob error = %v, want ErrJobNotFound", err)
	}
}

func TestService_FileStorageFailureIsNonFatal(t *testing.T) {
	svc, mem, rev := newFixture(t)
	mem.FailFileStorage = true

	jobID := startAndValidate(t, svc)
	report, err := svc.CommitJob(context.Background(), jobID, rev.ID, "tester", estimate.ApplyAtomic)
	if err != nil {
		t.Fatalf("CommitJob() error = %v, file storage failures must not fail the commit", err)
	}
	if report.RowsCreated != 3 {
		t.Errorf("RowsCreated = %d, want 3", report.RowsCreated)
	}
}

func TestService_PreviewTotals(t *testing.T) {
	svc, _, _ := newFixture(t)
	jobID := startAndValidate(t, svc)

	cfg := estimate.AddOnConfig{
		PrelimsPct:       decimal.NewFromInt(10),
		RoundingDecimals: 2,
	}
	subs, addOns, err := svc.PreviewTotals(jobID, cfg)
	if err != nil {
		t.Fatalf("PreviewTotals() error = %v", err)
	}
	if got := subs.Grand.StringFixed(2); got != "150.00" {
		t.Errorf("Grand = %s, want 150.00", got)
	}
	if got := addOns.GrandTotal.StringFixed(2); got != "165.00" {
		t.Errorf("GrandTotal = %s, want 165.00", got)
	}
}

package estimate

// reconcile.go matches validated rows against a revision's existing records
// by external key and stages the resulting create/update/delete operations.
//
// The pass is two-phase: every DELETE row first, in file order, then every
// UPSERT row, in file order. Records without an external key are unreachable
// by reconciliation and are never touched. A DELETE whose key matches nothing
// is a silent no-op. Duplicate keys within one file resolve to the same
// record in file order, last write wins.

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// OpKind is the kind of one staged persistence operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Operation is one staged write. For creates the record carries a
// pre-assigned ID so later rows in the same file can update it.
type Operation struct {
	Kind   OpKind
	Record LineRecord
}

// Plan is the full staged outcome of reconciling one import against one
// revision. Counters reflect the sequential semantics of the pass, so a key
// that is created and then updated by a later duplicate row counts once in
// each bucket.
type Plan struct {
	Ops     []Operation
	Created int
	Updated int
	Deleted int
}

// BuildPlan reconciles validated rows against the revision's existing
// records. It stages operations without touching the store.
func BuildPlan(rows []ValidatedRow, existing []LineRecord, revisionID uuid.UUID, places int32, now time.Time) Plan {
	byKey := make(map[string]LineRecord)
	for _, rec := range existing {
		if rec.ExternalKey != "" {
			byKey[rec.ExternalKey] = rec
		}
	}

	var plan Plan

	// Delete pass, file order. Unresolved keys are silent no-ops.
	for _, row := range rows {
		if row.Action != ActionDelete {
			continue
		}
		rec, ok := byKey[row.ExternalKey]
		if !ok {
			continue
		}
		delete(byKey, row.ExternalKey)
		plan.Ops = append(plan.Ops, Operation{Kind: OpDelete, Record: rec})
		plan.Deleted++
	}

	// Upsert pass, file order. Display numbering restarts per import:
	// section headers advance the section counter and reset the item
	// counter; item numbers are "section.item" once a header has been
	// seen, else the bare item counter.
	sectionCounter := 0
	itemCounter := 0
	sortOrder := 0

	for _, row := range rows {
		if row.Action != ActionUpsert {
			continue
		}

		var itemNumber string
		switch row.Kind {
		case KindSectionHeader:
			sectionCounter++
			itemCounter = 0
			itemNumber = strconv.Itoa(sectionCounter)
		case KindLineItem:
			itemCounter++
			if sectionCounter > 0 {
				itemNumber = strconv.Itoa(sectionCounter) + "." + strconv.Itoa(itemCounter)
			} else {
				itemNumber = strconv.Itoa(itemCounter)
			}
		}

		if prev, ok := byKey[row.ExternalKey]; ok {
			// Update in place: identity and fields not carried by the
			// row survive.
			updated := applyRow(prev, row, itemNumber, sortOrder, places, now)
			byKey[row.ExternalKey] = updated
			plan.Ops = append(plan.Ops, Operation{Kind: OpUpdate, Record: updated})
			plan.Updated++
		} else {
			rec := applyRow(LineRecord{
				ID:         uuid.New(),
				RevisionID: revisionID,
				// Imported rows are governed as final regardless of
				// how they were produced.
				Status:    StatusFinal,
				CreatedAt: now,
			}, row, itemNumber, sortOrder, places, now)
			if row.ExternalKey != "" {
				byKey[row.ExternalKey] = rec
			}
			plan.Ops = append(plan.Ops, Operation{Kind: OpCreate, Record: rec})
			plan.Created++
		}

		sortOrder++
	}

	return plan
}

// applyRow writes a validated row's fields onto a record and derives the
// amount. Section headers carry no item-level fields or amount.
func applyRow(rec LineRecord, row ValidatedRow, itemNumber string, sortOrder int, places int32, now time.Time) LineRecord {
	rec.Kind = row.Kind
	rec.ItemNumber = itemNumber
	rec.Section = row.Section
	rec.Description = row.Description
	rec.Measurement = row.Measurement
	rec.Assumptions = row.Assumptions
	rec.SortOrder = sortOrder
	rec.ExternalKey = row.ExternalKey
	rec.UpdatedAt = now

	switch row.Kind {
	case KindSectionHeader:
		rec.Unit = ""
		rec.Quantity = nil
		rec.Rate = nil
		rec.Amount = nil
		rec.Category = ""
	case KindLineItem:
		rec.Unit = row.Unit
		rec.Quantity = row.Quantity
		rec.Rate = row.Rate
		rec.Amount = Amount(row.Quantity, row.Rate, places)
		rec.Category = row.Category
	}

	return rec
}

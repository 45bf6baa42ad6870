package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hallvard-mk/estimo/internal/estimate"
)

// Memory is an in-memory estimate.Store. It backs tests and local runs that
// do not need PostgreSQL. InTx runs the callback against the same store;
// there is no rollback.
type Memory struct {
	mu        sync.Mutex
	revisions map[uuid.UUID]estimate.Revision
	configs   map[uuid.UUID]estimate.AddOnConfig
	records   map[uuid.UUID]estimate.LineRecord
	reports   []estimate.ImportReport
	audit     []estimate.AuditEntry
	files     map[string][]byte

	// FailFileStorage makes StoreOriginalFile return an error, for
	// exercising the best-effort path.
	FailFileStorage bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		revisions: make(map[uuid.UUID]estimate.Revision),
		configs:   make(map[uuid.UUID]estimate.AddOnConfig),
		records:   make(map[uuid.UUID]estimate.LineRecord),
		files:     make(map[string][]byte),
	}
}

// PutRevision seeds a revision.
func (s *Memory) PutRevision(rev estimate.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions[rev.ID] = rev
}

// PutAddOnConfig seeds an add-on configuration.
func (s *Memory) PutAddOnConfig(cfg estimate.AddOnConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.RevisionGroupID] = cfg
}

// Reports returns a copy of every saved import report.
func (s *Memory) Reports() []estimate.ImportReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]estimate.ImportReport, len(s.reports))
	copy(out, s.reports)
	return out
}

// Files returns the stored original files keyed by path.
func (s *Memory) Files() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

func (s *Memory) GetRevision(_ context.Context, id uuid.UUID) (estimate.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.revisions[id]
	if !ok {
		return estimate.Revision{}, estimate.ErrRevisionNotFound
	}
	return rev, nil
}

func (s *Memory) GetAddOnConfig(_ context.Context, revisionGroupID uuid.UUID) (estimate.AddOnConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[revisionGroupID]
	if !ok {
		return estimate.AddOnConfig{RevisionGroupID: revisionGroupID, RoundingDecimals: 2}, nil
	}
	return cfg, nil
}

func (s *Memory) GetLineRecords(_ context.Context, revisionID uuid.UUID) ([]estimate.LineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]estimate.LineRecord, 0)
	for _, rec := range s.records {
		if rec.RevisionID == revisionID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].SortOrder != records[j].SortOrder {
			return records[i].SortOrder < records[j].SortOrder
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Memory) CreateLineRecord(_ context.Context, rec estimate.LineRecord) (estimate.LineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return estimate.LineRecord{}, fmt.Errorf("line record %s already exists", rec.ID)
	}
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *Memory) UpdateLineRecord(_ context.Context, rec estimate.LineRecord) (estimate.LineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; !exists {
		return estimate.LineRecord{}, fmt.Errorf("line record %s not found", rec.ID)
	}
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *Memory) DeleteLineRecord(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *Memory) SaveImportReport(_ context.Context, report estimate.ImportReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *Memory) AppendAuditEntry(_ context.Context, entry estimate.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Memory) ListAuditEntries(_ context.Context, revisionGroupID uuid.UUID, limit int) ([]estimate.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]estimate.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.audit[i].RevisionGroupID == revisionGroupID {
			entries = append(entries, s.audit[i])
		}
	}
	return entries, nil
}

func (s *Memory) StoreOriginalFile(_ context.Context, revisionGroupID, jobID uuid.UUID, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFileStorage {
		return "", fmt.Errorf("file storage unavailable")
	}
	path := revisionGroupID.String() + "/" + jobID.String() + "_" + name
	buf := make([]byte, len(data))
	copy(buf, data)
	s.files[path] = buf
	return path, nil
}

func (s *Memory) InTx(_ context.Context, fn func(estimate.Store) error) error {
	return fn(s)
}

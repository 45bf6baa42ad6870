package estimate

// service.go coordinates the import pipeline end to end and owns the
// in-memory registry of in-flight import jobs. A job is created when a file
// is parsed, revisited for validation (possibly several times, with different
// mappings), and consumed by commit. Jobs expire after a TTL so abandoned
// uploads do not accumulate.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hallvard-mk/estimo/internal/tabular"
)

// DefaultJobTTL is how long a parsed-but-uncommitted job is retained.
const DefaultJobTTL = 30 * time.Minute

// ServiceOptions configure the import service. Zero values select defaults.
type ServiceOptions struct {
	MaxRows          int
	Categories       []string
	FallbackCategory string
	JobTTL           time.Duration
	// AliasOverrides adds header aliases per semantic field, typically
	// loaded from the alias YAML file.
	AliasOverrides map[Field][]string
}

// Service is the import pipeline's entry point for the surrounding
// application.
type Service struct {
	store     Store
	mapper    *Mapper
	validator *Validator
	committer *Committer
	jobTTL    time.Duration

	mu   sync.Mutex
	jobs map[uuid.UUID]*importJob
}

// importJob holds one parsed upload between preview and commit.
type importJob struct {
	ID        uuid.UUID
	FileName  string
	Original  []byte
	Table     *tabular.RawTable
	Mapping   FieldMapping
	Result    *ValidationResult
	CreatedAt time.Time
}

// JobInfo is the caller-facing view of a freshly started job.
type JobInfo struct {
	ID              uuid.UUID    `json:"id"`
	FileName        string       `json:"fileName"`
	Headers         []string     `json:"headers"`
	RowCount        int          `json:"rowCount"`
	ProposedMapping FieldMapping `json:"proposedMapping"`
}

// NewService creates the import service over the given store.
func NewService(store Store, opts ServiceOptions) *Service {
	if opts.JobTTL <= 0 {
		opts.JobTTL = DefaultJobTTL
	}
	return &Service{
		store:  store,
		mapper: NewMapper(opts.AliasOverrides),
		validator: NewValidator(ValidatorOptions{
			MaxRows:          opts.MaxRows,
			Categories:       opts.Categories,
			FallbackCategory: opts.FallbackCategory,
		}),
		committer: NewCommitter(store),
		jobTTL:    opts.JobTTL,
		jobs:      make(map[uuid.UUID]*importJob),
	}
}

// StartJob parses an upload, proposes a column mapping and registers the job.
// Oversized files are not rejected here; the validator's row ceiling reports
// that as a single blocking issue.
func (s *Service) StartJob(fileName string, data []byte, format tabular.Format, sheet string) (*JobInfo, error) {
	table, err := tabular.Parse(data, format, sheet)
	if err != nil {
		return nil, err
	}

	job := &importJob{
		ID:        uuid.New(),
		FileName:  fileName,
		Original:  data,
		Table:     table,
		Mapping:   s.mapper.Propose(table.Headers),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	s.expireLater(job.ID)

	slog.Info("import job started",
		"job_id", job.ID,
		"file", fileName,
		"rows", len(table.Rows),
		"mapped_fields", len(job.Mapping),
	)

	return &JobInfo{
		ID:              job.ID,
		FileName:        job.FileName,
		Headers:         table.Headers,
		RowCount:        len(table.Rows),
		ProposedMapping: job.Mapping,
	}, nil
}

// ValidateJob runs the row validator over a job's table. A nil mapping keeps
// the job's current mapping (initially the proposal); a non-nil mapping
// replaces it after checking that no column is claimed twice.
func (s *Service) ValidateJob(jobID uuid.UUID, mapping FieldMapping) (*ValidationResult, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	if mapping != nil {
		if err := mapping.Validate(); err != nil {
			return nil, fmt.Errorf("invalid mapping: %w", err)
		}
		job.Mapping = mapping
	}

	result := s.validator.Validate(job.Table, job.Mapping)
	job.Result = result
	return result, nil
}

// PreviewTotals computes what the revision's totals would look like for the
// job's valid rows alone, without persisting anything.
func (s *Service) PreviewTotals(jobID uuid.UUID, cfg AddOnConfig) (*Subtotals, *AddOnBreakdown, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Result == nil {
		return nil, nil, ErrNotValidated
	}

	now := time.Now().UTC()
	preview := make([]LineRecord, 0, len(job.Result.ValidRows))
	for i, row := range job.Result.ValidRows {
		if row.Action == ActionDelete {
			continue
		}
		preview = append(preview, applyRow(LineRecord{}, row, "", i, cfg.RoundingDecimals, now))
	}

	subs := ComputeSubtotals(preview, cfg.RoundingDecimals)
	addOns := AddOns(subs.Grand, cfg)
	return &subs, &addOns, nil
}

// PreviewTotalsForRevision is PreviewTotals under a revision group's stored
// add-on configuration.
func (s *Service) PreviewTotalsForRevision(ctx context.Context, jobID, revisionID uuid.UUID) (*Subtotals, *AddOnBreakdown, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.store.GetAddOnConfig(ctx, rev.RevisionGroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("load add-on config: %w", err)
	}
	return s.PreviewTotals(jobID, cfg)
}

// CommitJob reconciles a validated job into the target revision. The commit
// is refused while blocking issues remain, while description is unmapped, or
// when the revision is frozen. Storing the original upload is best-effort and
// never fails the commit.
func (s *Service) CommitJob(ctx context.Context, jobID uuid.UUID, revisionID uuid.UUID, actorID string, mode ApplyMode) (*ImportReport, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}
	if job.Result == nil {
		return nil, ErrNotValidated
	}
	if job.Result.Blocked() {
		return nil, ErrBlockingIssues
	}
	if _, ok := job.Mapping[FieldDescription]; !ok {
		return nil, ErrDescriptionUnmapped
	}

	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.Frozen {
		return nil, ErrRevisionFrozen
	}

	cfg, err := s.store.GetAddOnConfig(ctx, rev.RevisionGroupID)
	if err != nil {
		return nil, fmt.Errorf("load add-on config: %w", err)
	}

	report, err := s.committer.Commit(ctx, ImportContext{
		RevisionID:       rev.ID,
		RevisionGroupID:  rev.RevisionGroupID,
		JobID:            job.ID,
		ActorID:          actorID,
		RoundingDecimals: cfg.RoundingDecimals,
		Mode:             mode,
	}, job.Result.ValidRows, len(job.Result.Warnings))
	if err != nil {
		return nil, err
	}

	if _, ferr := s.store.StoreOriginalFile(ctx, rev.RevisionGroupID, job.ID, job.FileName, job.Original); ferr != nil {
		slog.Warn("failed to store original upload", "job_id", job.ID, "error", ferr)
	}

	s.dropJob(job.ID)
	return report, nil
}

// RevisionTotals loads a revision's records and computes its subtotals and
// add-on breakdown under the group's configuration.
func (s *Service) RevisionTotals(ctx context.Context, revisionID uuid.UUID) (*Subtotals, *AddOnBreakdown, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.store.GetAddOnConfig(ctx, rev.RevisionGroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("load add-on config: %w", err)
	}
	records, err := s.store.GetLineRecords(ctx, revisionID)
	if err != nil {
		return nil, nil, err
	}

	subs := ComputeSubtotals(records, cfg.RoundingDecimals)
	addOns := AddOns(subs.Grand, cfg)
	return &subs, &addOns, nil
}

// RevisionRecords returns a revision's line records in display order.
func (s *Service) RevisionRecords(ctx context.Context, revisionID uuid.UUID) ([]LineRecord, error) {
	if _, err := s.store.GetRevision(ctx, revisionID); err != nil {
		return nil, err
	}
	return s.store.GetLineRecords(ctx, revisionID)
}

// AuditLog returns recent audit entries for a revision group.
func (s *Service) AuditLog(ctx context.Context, revisionGroupID uuid.UUID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListAuditEntries(ctx, revisionGroupID, limit)
}

func (s *Service) job(id uuid.UUID) (*importJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *Service) dropJob(id uuid.UUID) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// expireLater schedules removal of a job after the TTL. Committed jobs are
// removed earlier by CommitJob; the timer firing afterwards is a no-op.
func (s *Service) expireLater(id uuid.UUID) {
	time.AfterFunc(s.jobTTL, func() {
		s.mu.Lock()
		job, ok := s.jobs[id]
		if ok && time.Since(job.CreatedAt) >= s.jobTTL {
			delete(s.jobs, id)
			slog.Debug("import job expired", "job_id", id)
		}
		s.mu.Unlock()
	})
}

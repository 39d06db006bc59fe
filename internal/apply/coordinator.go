package apply

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/ingestlab/internal/analyze"
	"github.com/roach88/ingestlab/internal/extract"
	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/store"
)

// AuditWriter persists audit entries atomically. *store.Store implements it.
type AuditWriter interface {
	WriteAudit(ctx context.Context, entries []store.AuditEntry) error
}

// State is the lifecycle state of a simulation record.
type State string

const (
	StateSimulated State = "simulated"
	StateApplied   State = "applied"
)

// SimulationRecord is the outcome of one Simulate call.
type SimulationRecord struct {
	ID            int64               `json:"id"`
	Passed        bool                `json:"passed"`
	Reasons       []string            `json:"reasons"`
	Resources     []string            `json:"resources"`
	Counts        map[string]int      `json:"counts"`
	CoverageRatio float64             `json:"coverage_ratio"`
	FailedGates   int                 `json:"failed_gates"`
	Gates         *analyze.GateReport `json:"gates"`
	PayloadHash   string              `json:"payload_hash"`
	CreatedAt     time.Time           `json:"created_at"`
	State         State               `json:"state"`
	AppliedAt     time.Time           `json:"applied_at,omitzero"`
}

func (r *SimulationRecord) clone() *SimulationRecord {
	out := *r
	out.Reasons = slices.Clone(r.Reasons)
	out.Resources = slices.Clone(r.Resources)
	out.Counts = maps.Clone(r.Counts)
	return &out
}

// ApplyResult describes a successful Apply.
type ApplyResult struct {
	SimulationID   int64          `json:"simulation_id"`
	BatchID        string         `json:"batch_id"`
	RowsByResource map[string]int `json:"rows_by_resource"`
	Entries        int            `json:"entries"`
	AppliedAt      time.Time      `json:"applied_at"`
}

// Coordinator gates audited writes behind passed simulations.
//
// Simulate may run concurrently; extraction happens outside the lock.
// Apply is serialized.
type Coordinator struct {
	auditor    AuditWriter
	policy     Policy
	maxRecords int
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
	workers    int
	batchIDs   func() string
	seq        *Sequence

	mu      sync.Mutex
	records map[int64]*SimulationRecord
	order   []int64
}

// NewCoordinator creates a coordinator writing to auditor.
func NewCoordinator(auditor AuditWriter, opts ...Option) *Coordinator {
	c := &Coordinator{
		auditor:    auditor,
		maxRecords: DefaultMaxRecords,
		ttl:        DefaultTTL,
		now:        time.Now,
		logger:     slog.Default(),
		batchIDs:   newBatchID,
		seq:        NewSequence(),
		records:    make(map[int64]*SimulationRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Simulate runs the rules over samples and records the outcome.
//
// samples maps document id to HTML. raw is the rule payload doc was built
// from; its hash pins the simulation to that exact payload. gates are
// merged with the document's own quality gates, with the caller's
// thresholds winning.
//
// A policy violation returns *SecurityPolicyError and records nothing. A
// failing simulation is not an error: the record is returned with Passed
// false and its reasons.
func (c *Coordinator) Simulate(
	ctx context.Context,
	doc *ir.RuleDocument,
	samples map[string]string,
	raw map[string]any,
	gates analyze.Gates,
) (*SimulationRecord, error) {
	if err := c.policy.Check(doc, raw); err != nil {
		c.logger.Warn("simulation rejected by policy", "error", err)
		return nil, err
	}

	hash, err := ir.PayloadHash(raw)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	batch, err := extract.ExtractBatch(ctx, doc, samples, extract.BatchOptions{
		Options: extract.Options{ApplyTransforms: true, Logger: c.logger},
		Workers: c.workers,
	})
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	cov := analyze.Coverage(doc, batch.Aggregated, nil)
	all := analyze.Gates(doc.Gates()).Merge(gates)
	report := analyze.EvaluateGates(cov, all)

	rec := &SimulationRecord{
		Reasons:       []string{},
		Resources:     doc.ResourceNames(),
		Counts:        make(map[string]int),
		CoverageRatio: cov.OverallRatio,
		FailedGates:   report.FailedCount,
		Gates:         report,
		PayloadHash:   hash,
		State:         StateSimulated,
	}
	for _, name := range rec.Resources {
		rec.Counts[name] = len(batch.Aggregated[name])
	}
	if report.FailedCount > 0 {
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("%d quality gates failed", report.FailedCount))
	}
	for _, name := range all.Resources() {
		if rec.Counts[name] == 0 {
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("referenced resource '%s' produced 0 rows", name))
		}
	}
	rec.Passed = len(rec.Reasons) == 0

	c.mu.Lock()
	rec.ID = c.seq.Next()
	rec.CreatedAt = c.now()
	c.records[rec.ID] = rec
	c.order = append(c.order, rec.ID)
	for len(c.order) > c.maxRecords {
		evicted := c.order[0]
		c.order = c.order[1:]
		delete(c.records, evicted)
		c.logger.Debug("simulation evicted", "simulation_id", evicted)
	}
	out := rec.clone()
	c.mu.Unlock()

	c.logger.Info("simulation recorded",
		"simulation_id", out.ID,
		"passed", out.Passed,
		"documents", len(samples),
		"failed_gates", out.FailedGates,
	)
	return out, nil
}

// Apply commits a passed simulation as one audit entry per resource.
//
// raw must be the payload that was simulated. On any refusal the returned
// error is an *ApplyStateError and nothing is written. If the audit write
// fails the record stays simulated and may be applied again.
func (c *Coordinator) Apply(ctx context.Context, id int64, raw map[string]any) (*ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	switch {
	case !ok:
		return nil, &ApplyStateError{SimulationID: id, Reason: ReasonUnknown}
	case rec.State == StateApplied:
		return nil, &ApplyStateError{SimulationID: id, Reason: ReasonAlreadyApplied}
	case !rec.Passed:
		return nil, &ApplyStateError{SimulationID: id, Reason: ReasonFailedSimulation, Detail: strings.Join(rec.Reasons, "; ")}
	}

	now := c.now()
	if age := now.Sub(rec.CreatedAt); age > c.ttl {
		return nil, &ApplyStateError{
			SimulationID: id,
			Reason:       ReasonStale,
			Detail:       fmt.Sprintf("simulated %s ago, ttl %s", age.Round(time.Second), c.ttl),
		}
	}

	hash, err := ir.PayloadHash(raw)
	if err != nil {
		return nil, &ApplyStateError{SimulationID: id, Reason: ReasonPayloadDrift, Detail: err.Error()}
	}
	if hash != rec.PayloadHash {
		return nil, &ApplyStateError{SimulationID: id, Reason: ReasonPayloadDrift, Detail: "rule payload changed since simulation"}
	}

	batchID := c.batchIDs()
	entries := make([]store.AuditEntry, 0, len(rec.Resources))
	for _, name := range rec.Resources {
		entries = append(entries, store.AuditEntry{
			BatchID:      batchID,
			SimulationID: id,
			Resource:     name,
			RowCount:     rec.Counts[name],
			PayloadHash:  rec.PayloadHash,
			AppliedAt:    now,
		})
	}
	if err := c.auditor.WriteAudit(ctx, entries); err != nil {
		c.logger.Warn("apply failed", "simulation_id", id, "error", err)
		return nil, fmt.Errorf("apply simulation %d: %w", id, err)
	}

	rec.State = StateApplied
	rec.AppliedAt = now
	c.logger.Info("simulation applied", "simulation_id", id, "batch_id", batchID, "entries", len(entries))

	return &ApplyResult{
		SimulationID:   id,
		BatchID:        batchID,
		RowsByResource: maps.Clone(rec.Counts),
		Entries:        len(entries),
		AppliedAt:      now,
	}, nil
}

// Record returns a copy of the simulation with the given id.
func (c *Coordinator) Record(id int64) (*SimulationRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Records returns copies of every retained simulation, oldest first.
func (c *Coordinator) Records() []*SimulationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*SimulationRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.records[id].clone())
	}
	return out
}

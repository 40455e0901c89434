// Package patchlog keeps the append-only, versioned patchset log for the
// IR flow and enforces the optimistic-concurrency commit protocol: a
// client commits against the state it believes is current, and the log
// rejects the commit when the target drifted or changed underneath it.
package patchlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/observability"
	"github.com/forgeline/forgeline/patch"
	"github.com/forgeline/forgeline/storage"
)

// PatchsetRecord is one committed patchset. Records are immutable once
// appended; the only removal is popping the latest one.
type PatchsetRecord struct {
	PatchsetID  string            `json:"patchset_id"`
	CreatedAt   time.Time         `json:"created_at"`
	Ops         patch.Ops         `json:"ops"`
	PageIndex   int               `json:"page_index"`
	Rationale   string            `json:"rationale,omitempty"`
	SelectedIDs []string          `json:"selected_ids,omitempty"`
	DiffSummary []patch.DiffEntry `json:"diff_summary"`
	Results     []patch.OpResult  `json:"results"`
	Warnings    []string          `json:"warnings"`
}

// Patchset is the caller-supplied part of a commit.
type Patchset struct {
	Ops         patch.Ops
	PageIndex   int
	Rationale   string
	SelectedIDs []string
}

// Guard is the client's believed state of one commit target.
type Guard struct {
	BBox        ir.BBox `json:"bbox"`
	ContentHash string  `json:"content_hash"`
}

// ContentHash hashes a text run's semantic content.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ValidationError carries the itemized errors of a rejected batch.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("patchlog: invalid patchset: %v", e.Errors)
}

// DriftError reports a target whose bbox moved beyond tolerance since the
// client read it.
type DriftError struct {
	TargetID    string
	Expected    ir.BBox
	Current     ir.BBox
	TolerancePt float64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("patchlog: target %s drifted beyond %.1fpt", e.TargetID, e.TolerancePt)
}

// ConflictError reports a content-hash mismatch. It carries the
// authoritative current state so the client can re-read and retry.
type ConflictError struct {
	TargetID     string
	CurrentText  string
	CurrentHash  string
	ExpectedHash string
	RetryHint    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("patchlog: target %s content changed", e.TargetID)
}

// Log is the per-document patchset log, persisted as one JSON array.
type Log struct {
	store  storage.Store
	docID  string
	tracer observability.Tracer
}

// NewLog binds a log to a document in a store.
func NewLog(store storage.Store, docID string) *Log {
	return &Log{store: store, docID: docID, tracer: observability.NopTracer()}
}

// WithTracer makes Commit open a span per attempt.
func (l *Log) WithTracer(tracer observability.Tracer) *Log {
	l.tracer = tracer
	return l
}

func (l *Log) key() string {
	return fmt.Sprintf("documents/%s/patches.json", l.docID)
}

// Load returns all committed records in commit order.
func (l *Log) Load() ([]PatchsetRecord, error) {
	data, err := l.store.Get(l.key())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []PatchsetRecord
	if err := storage.DecodeJSON(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (l *Log) save(records []PatchsetRecord) error {
	data, err := storage.EncodeJSON(records)
	if err != nil {
		return err
	}
	return l.store.Put(l.key(), data)
}

// Append writes a fully-formed record to the end of the log.
func (l *Log) Append(record PatchsetRecord) error {
	records, err := l.Load()
	if err != nil {
		return err
	}
	return l.save(append(records, record))
}

// RevertLast pops the latest record. Popping an empty log is a no-op.
// There is no redo.
func (l *Log) RevertLast() ([]PatchsetRecord, error) {
	records, err := l.Load()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}
	records = records[:len(records)-1]
	if err := l.save(records); err != nil {
		return nil, err
	}
	return records, nil
}

// CompositeOps concatenates, in commit order, the ops of every record
// touching the given page.
func CompositeOps(records []PatchsetRecord, pageIndex int) patch.Ops {
	var ops patch.Ops
	for _, record := range records {
		if record.PageIndex == pageIndex {
			ops = append(ops, record.Ops...)
		}
	}
	return ops
}

// CheckGuards compares the client's believed state with the authoritative
// snapshot. Guards are checked in target-id order so the first rejection
// is deterministic. A guard whose target is absent from the snapshot is
// the validator's problem, not a conflict.
func CheckGuards(truth *ir.PageIR, guards map[string]Guard, tolerancePt float64) error {
	ids := make([]string, 0, len(guards))
	for id := range guards {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		guard := guards[id]
		prim := truth.FindPrimitive(id)
		if prim == nil {
			continue
		}
		for axis := 0; axis < 4; axis++ {
			if math.Abs(prim.BBox[axis]-guard.BBox[axis]) > tolerancePt {
				return &DriftError{
					TargetID:    id,
					Expected:    guard.BBox,
					Current:     prim.BBox,
					TolerancePt: tolerancePt,
				}
			}
		}
		if guard.ContentHash != "" {
			current := ContentHash(prim.Text)
			if current != guard.ContentHash {
				return &ConflictError{
					TargetID:     id,
					CurrentText:  prim.Text,
					CurrentHash:  current,
					ExpectedHash: guard.ContentHash,
					RetryHint:    "refresh_ir",
				}
			}
		}
	}
	return nil
}

// Commit validates the patchset against ground truth (the base snapshot
// with the full committed log replayed onto it), enforces the guards,
// applies the ops and appends the record atomically. Conflicting writers
// are rejected, never queued or merged.
func (l *Log) Commit(base *ir.PageIR, applier *patch.Applier, ps Patchset, guards map[string]Guard, tolerancePt float64) (PatchsetRecord, error) {
	_, span := l.tracer.StartSpan(context.Background(), observability.SpanCommit)
	defer span.Finish()
	span.SetTag("doc_id", l.docID)
	span.SetTag("page_index", ps.PageIndex)
	fail := func(err error) (PatchsetRecord, error) {
		span.SetError(err)
		return PatchsetRecord{}, err
	}

	if len(ps.Ops) == 0 {
		return fail(fmt.Errorf("patchlog: empty patchset"))
	}
	records, err := l.Load()
	if err != nil {
		return fail(err)
	}

	truth, _ := applier.Apply(base, CompositeOps(records, ps.PageIndex))

	validation := patch.Validate(truth, ps.Ops, ps.SelectedIDs)
	if !validation.OK {
		return fail(&ValidationError{Errors: validation.Errors})
	}
	if err := CheckGuards(truth, guards, tolerancePt); err != nil {
		return fail(err)
	}

	_, results := applier.Apply(truth, ps.Ops)

	record := PatchsetRecord{
		PatchsetID:  uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Ops:         ps.Ops,
		PageIndex:   ps.PageIndex,
		Rationale:   ps.Rationale,
		SelectedIDs: ps.SelectedIDs,
		DiffSummary: validation.DiffSummary,
		Results:     results,
		Warnings:    collectWarnings(results),
	}
	if err := l.save(append(records, record)); err != nil {
		return fail(err)
	}
	return record, nil
}

func collectWarnings(results []patch.OpResult) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, w := range r.Warnings {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	return out
}

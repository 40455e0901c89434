package overlay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgeline/forgeline/config"
	"github.com/forgeline/forgeline/observability"
	"github.com/forgeline/forgeline/storage"
)

// VersionError rejects a commit whose base version is stale. Current is
// the authoritative counter the client must rebase onto.
type VersionError struct {
	Current int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("overlay: stale base version, current is %d", e.Current)
}

// OutOfScopeError rejects an op targeting an element outside the
// commit's selection.
type OutOfScopeError struct {
	ElementID string
}

func (e *OutOfScopeError) Error() string {
	return fmt.Sprintf("overlay: op target %s outside selection", e.ElementID)
}

// TargetNotFoundError rejects an op whose target exists in neither the
// manifest nor the custom entries.
type TargetNotFoundError struct {
	ElementID string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("overlay: target %s not found", e.ElementID)
}

// ConflictError rejects a commit whose believed content hash is stale.
// It carries the authoritative current entry so the client can refresh
// and retry.
type ConflictError struct {
	ElementID         string
	ResolvedElementID string
	CurrentText       string
	CurrentHash       string
	ExpectedHash      string
	RetryHint         string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("overlay: target %s content has changed", e.ElementID)
}

// CommitRequest is one overlay commit attempt.
type CommitRequest struct {
	DocID       string          `json:"doc_id"`
	PageIndex   int             `json:"page_index"`
	BaseVersion int             `json:"base_overlay_version"`
	Selection   []SelectionItem `json:"selection"`
	Ops         Ops             `json:"ops"`
}

// CommitResult is a successful commit: the appended record, the new
// version and the page's rebuilt state.
type CommitResult struct {
	Record  PatchRecord `json:"patchset"`
	Version int         `json:"overlay_version"`
	State   PageState   `json:"state"`
}

// Service runs the overlay flow against a store: log and custom-entry
// persistence, version counters and the commit protocol.
type Service struct {
	store  storage.Store
	policy config.Policy
	logger observability.Logger
	tracer observability.Tracer
}

// NewService builds an overlay service. logger may be nil.
func NewService(store storage.Store, policy config.Policy, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Service{
		store:  store,
		policy: policy,
		logger: logger,
		tracer: observability.NopTracer(),
	}
}

// WithTracer makes Commit open a span per attempt.
func (s *Service) WithTracer(tracer observability.Tracer) *Service {
	s.tracer = tracer
	return s
}

func logKey(docID string) string {
	return fmt.Sprintf("docs/%s/forge/overlay_patches.json", docID)
}

func customKey(docID string) string {
	return fmt.Sprintf("docs/%s/forge/overlay_custom.json", docID)
}

func versionKey(docID string, pageIndex int) string {
	return fmt.Sprintf("docs/%s/overlay_version_%d.json", docID, pageIndex)
}

// LoadLog returns the document's committed overlay records in order.
func (s *Service) LoadLog(docID string) ([]PatchRecord, error) {
	data, err := s.store.Get(logKey(docID))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []PatchRecord
	if err := storage.DecodeJSON(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) appendRecord(docID string, record PatchRecord) error {
	records, err := s.LoadLog(docID)
	if err != nil {
		return err
	}
	data, err := storage.EncodeJSON(append(records, record))
	if err != nil {
		return err
	}
	return s.store.Put(logKey(docID), data)
}

// LoadCustomEntries returns the document's custom-entry side table.
func (s *Service) LoadCustomEntries(docID string) (map[string]CustomEntry, error) {
	data, err := s.store.Get(customKey(docID))
	if err != nil {
		if storage.IsNotFound(err) {
			return map[string]CustomEntry{}, nil
		}
		return nil, err
	}
	var entries []CustomEntry
	if err := storage.DecodeJSON(data, &entries); err != nil {
		return nil, err
	}
	out := make(map[string]CustomEntry, len(entries))
	for _, entry := range entries {
		if entry.ElementID != "" {
			out[entry.ElementID] = entry
		}
	}
	return out, nil
}

// UpsertCustomEntries merges entries into the side table by element id.
func (s *Service) UpsertCustomEntries(docID string, entries []CustomEntry) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := s.LoadCustomEntries(docID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.ElementID == "" {
			continue
		}
		existing[entry.ElementID] = entry
	}
	list := make([]CustomEntry, 0, len(existing))
	for _, entry := range existing {
		list = append(list, entry)
	}
	data, err := storage.EncodeJSON(list)
	if err != nil {
		return err
	}
	return s.store.Put(customKey(docID), data)
}

// Version returns the current overlay version for a document page.
// A page with no commits is at version 0.
func (s *Service) Version(docID string, pageIndex int) (int, error) {
	data, err := s.store.Get(versionKey(docID, pageIndex))
	if err != nil {
		if storage.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	var version int
	if err := storage.DecodeJSON(data, &version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Service) putVersion(docID string, pageIndex, version int) error {
	data, err := storage.EncodeJSON(version)
	if err != nil {
		return err
	}
	return s.store.Put(versionKey(docID, pageIndex), data)
}

// State rebuilds the full overlay state for a document.
func (s *Service) State(docID string, manifest *Manifest) (map[int]PageState, error) {
	records, err := s.LoadLog(docID)
	if err != nil {
		return nil, err
	}
	custom, err := s.LoadCustomEntries(docID)
	if err != nil {
		return nil, err
	}
	return BuildState(manifest, records, custom, s.policy.MaskPaddingNorm), nil
}

// Commit runs the optimistic-concurrency protocol: version check, fuzzy
// re-binding of the selection, custom-entry upsert, per-op scope and
// hash checks against rebuilt ground truth, then an atomic append and a
// version bump of exactly 1.
func (s *Service) Commit(manifest *Manifest, req CommitRequest) (CommitResult, error) {
	_, span := s.tracer.StartSpan(context.Background(), observability.SpanOverlayCommit)
	defer span.Finish()
	span.SetTag("doc_id", req.DocID)
	span.SetTag("page_index", req.PageIndex)

	result, err := s.commit(manifest, req)
	if err != nil {
		span.SetError(err)
	}
	return result, err
}

func (s *Service) commit(manifest *Manifest, req CommitRequest) (CommitResult, error) {
	start := time.Now()
	if len(req.Selection) == 0 {
		return CommitResult{}, fmt.Errorf("overlay: selection is required")
	}
	if len(req.Ops) == 0 {
		return CommitResult{}, fmt.Errorf("overlay: empty patchset")
	}

	current, err := s.Version(req.DocID, req.PageIndex)
	if err != nil {
		return CommitResult{}, err
	}
	if req.BaseVersion != current {
		return CommitResult{}, &VersionError{Current: current}
	}

	page := manifest.Page(req.PageIndex)
	if page == nil {
		return CommitResult{}, fmt.Errorf("overlay: page %d not found", req.PageIndex)
	}

	manifestIDs := make(map[string]bool, len(page.Elements))
	for _, el := range page.Elements {
		manifestIDs[el.ElementID] = true
	}

	selectionIDs := make(map[string]bool, len(req.Selection))
	selectionHashes := make(map[string]string, len(req.Selection))
	for _, item := range req.Selection {
		selectionIDs[item.ElementID] = true
		selectionHashes[item.ElementID] = item.ContentHash
	}

	resolved := ResolveSelection(req.Selection, page.Elements, s.policy.FuzzyMatchThreshold)

	// Selection items with no manifest id become custom entries, seeded
	// from the re-bound element when one was found.
	var customEntries []CustomEntry
	allowed := make(map[string]bool, len(manifestIDs))
	for id := range manifestIDs {
		allowed[id] = true
	}
	for _, item := range req.Selection {
		if item.ElementID == "" || manifestIDs[item.ElementID] {
			continue
		}
		entry := CustomEntry{
			ElementID:   item.ElementID,
			PageIndex:   req.PageIndex,
			BBox:        item.BBox,
			Text:        item.Text,
			Style:       item.Style,
			ElementType: item.ElementType,
			ContentHash: item.ContentHash,
		}
		if entry.ElementType == "" {
			entry.ElementType = "text"
		}
		if match, ok := resolved[item.ElementID]; ok {
			entry.BBox = match.BBox
			entry.Text = match.Text
			if len(match.Style) > 0 {
				entry.Style = match.Style
			}
			entry.ResolvedElementID = match.ElementID
		}
		customEntries = append(customEntries, entry)
		allowed[item.ElementID] = true
	}
	if err := s.UpsertCustomEntries(req.DocID, customEntries); err != nil {
		return CommitResult{}, err
	}

	state, err := s.State(req.DocID, manifest)
	if err != nil {
		return CommitResult{}, err
	}
	primitives := state[req.PageIndex].Primitives

	for _, op := range req.Ops {
		id := op.Element()
		if !selectionIDs[id] {
			return CommitResult{}, &OutOfScopeError{ElementID: id}
		}
		if !allowed[id] {
			return CommitResult{}, &TargetNotFoundError{ElementID: id}
		}
		resolvedID := id
		if match, ok := resolved[id]; ok && match.ElementID != "" {
			resolvedID = match.ElementID
		}
		expected := selectionHashes[id]
		entry, ok := primitives[resolvedID]
		if expected != "" && ok && entry.ContentHash != "" && entry.ContentHash != expected {
			return CommitResult{}, &ConflictError{
				ElementID:         id,
				ResolvedElementID: resolvedID,
				CurrentText:       entry.Text,
				CurrentHash:       entry.ContentHash,
				ExpectedHash:      expected,
				RetryHint:         "refresh_overlay",
			}
		}
	}

	record := PatchRecord{
		PatchID:   uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Ops:       req.Ops,
	}
	if err := s.appendRecord(req.DocID, record); err != nil {
		return CommitResult{}, err
	}
	next := current + 1
	if err := s.putVersion(req.DocID, req.PageIndex, next); err != nil {
		return CommitResult{}, err
	}

	state, err = s.State(req.DocID, manifest)
	if err != nil {
		return CommitResult{}, err
	}

	s.logger.Info("overlay commit",
		observability.String("doc_id", req.DocID),
		observability.Int("page_index", req.PageIndex),
		observability.Int("ops", len(req.Ops)),
		observability.Int("version", next),
		observability.Float64("elapsed_ms", float64(time.Since(start).Milliseconds())),
	)

	return CommitResult{
		Record:  record,
		Version: next,
		State:   state[req.PageIndex],
	}, nil
}

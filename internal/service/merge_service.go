package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"neoflow/internal/cache"
	"neoflow/internal/domain"
	"neoflow/internal/port"
	"neoflow/internal/registry"
)

// MergeUploadError reports the slot whose upload aborted a merge batch.
type MergeUploadError struct {
	Slot int
	Err  error
}

func (e *MergeUploadError) Error() string {
	return fmt.Sprintf("merge upload of slot %d failed: %v", e.Slot, e.Err)
}

func (e *MergeUploadError) Unwrap() error {
	return e.Err
}

// AggregateProgress folds the progress p (0-100) of file i out of n into one
// batch-wide percentage.
func AggregateProgress(i, p, n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round((float64(i) + float64(p)/100) / float64(n) * 100))
}

// SlotDocTypes derives per-slot doc types from a merge rule. Slots beyond
// the two named by the rule get an empty doc type.
func SlotDocTypes(rule domain.MergeRule, n int) []string {
	out := make([]string, n)
	if n > 0 {
		out[0] = rule.DocTypeA
	}
	if n > 1 {
		out[1] = rule.DocTypeB
	}
	return out
}

// MergeBatch is the fixed-size ordered set of slots of one merge submission.
// Slots may be filled in any order; the batch never changes size.
type MergeBatch struct {
	template domain.Template
	policy   UploadPolicy

	mu    sync.Mutex
	items []domain.MergeFileItem
}

// Template returns the merge template the batch belongs to.
func (b *MergeBatch) Template() domain.Template {
	return b.template
}

// Len returns the slot count.
func (b *MergeBatch) Len() int {
	return len(b.items)
}

// Fill validates file and places it in slot, replacing any previous file.
func (b *MergeBatch) Fill(slot int, file *domain.UploadFile) error {
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if err := b.policy.Validate(file); err != nil {
		return err
	}
	var preview []byte
	if file.IsImage() {
		preview = file.Content
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[slot].File = file
	b.items[slot].Preview = preview
	return nil
}

// Clear empties slot.
func (b *MergeBatch) Clear(slot int) error {
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[slot].File = nil
	b.items[slot].Preview = nil
	return nil
}

func (b *MergeBatch) checkSlot(slot int) error {
	if slot < 0 || slot >= len(b.items) {
		return fmt.Errorf("slot %d of %d: %w", slot, len(b.items), domain.ErrSlotOutOfRange)
	}
	return nil
}

// Ready reports whether every slot holds a file.
func (b *MergeBatch) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].File == nil {
			return false
		}
	}
	return true
}

// Items returns a copy of the slots in slot order.
func (b *MergeBatch) Items() []domain.MergeFileItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.MergeFileItem(nil), b.items...)
}

// MergeService uploads merge batches and submits them for combined
// processing.
type MergeService struct {
	api    port.DocumentAPI
	cache  *cache.Cache
	reg    *registry.Registry
	policy UploadPolicy
}

// NewMergeService creates a MergeService.
func NewMergeService(api port.DocumentAPI, c *cache.Cache, reg *registry.Registry, policy UploadPolicy) *MergeService {
	return &MergeService{api: api, cache: c, reg: reg, policy: policy}
}

// NewBatch creates an empty batch for a merge template with one slot per
// doc type.
func (s *MergeService) NewBatch(template domain.Template, docTypes []string) (*MergeBatch, error) {
	if !template.IsMerge() {
		return nil, fmt.Errorf("template %s: %w", template.Code, domain.ErrNotMergeTemplate)
	}
	if len(docTypes) != template.RequiredDocCount || len(docTypes) == 0 {
		return nil, fmt.Errorf("template %s needs %d files, got %d doc types: %w",
			template.Code, template.RequiredDocCount, len(docTypes), domain.ErrSlotCountMismatch)
	}
	items := make([]domain.MergeFileItem, len(docTypes))
	for i, dt := range docTypes {
		items[i] = domain.MergeFileItem{SlotID: i, DocType: dt}
	}
	return &MergeBatch{template: template, policy: s.policy, items: items}, nil
}

// Submit uploads every slot in ascending order, one at a time, then issues
// one merge-process call listing the uploaded files in slot order. The first
// failed upload aborts the batch; files already uploaded are left in place.
// onProgress, when set, receives the batch's high-water aggregate after every
// transport report, so it never decreases when a body is re-sent.
func (s *MergeService) Submit(ctx context.Context, batch *MergeBatch, onProgress port.ProgressFunc) (*domain.ProcessResponse, error) {
	if !batch.Ready() {
		return nil, domain.ErrMergeIncomplete
	}
	items := batch.Items()
	tpl := batch.Template()
	n := len(items)

	tracker := s.reg.Track(registry.NewKey("upload-merge"))
	files := make([]domain.MergeFile, 0, n)
	for i, item := range items {
		idx := i
		resp, err := s.api.Upload(ctx, port.UploadInput{
			File:       item.File,
			TemplateID: tpl.ID,
			OnProgress: func(p int) {
				agg := AggregateProgress(idx, p, n)
				tracker.Report(agg)
				if onProgress != nil {
					onProgress(tracker.High())
				}
			},
		})
		if err != nil {
			tracker.Done()
			log.Printf("mergeService.Submit: slot %d of template %s failed after %d uploads: %v", item.SlotID, tpl.Code, i, err)
			return nil, &MergeUploadError{Slot: item.SlotID, Err: err}
		}
		files = append(files, domain.MergeFile{FilePath: resp.FilePath, DocType: item.DocType})
	}
	tracker.Done()
	s.cache.Invalidate(cache.Lists())

	key := registry.NewKey("merge")
	s.reg.MarkProcessing(key)
	defer s.reg.UnmarkProcessing(key)

	log.Printf("mergeService.Submit: submitting %d files for template %s", n, tpl.Code)
	resp, err := s.api.ProcessMerge(ctx, tpl.ID, files)
	if err != nil {
		return nil, fmt.Errorf("processing merge for template %s: %w", tpl.Code, err)
	}
	s.cache.Invalidate(cache.Lists())
	return resp, nil
}

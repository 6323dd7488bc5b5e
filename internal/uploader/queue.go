package uploader

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Mode selects how much per-file metadata the flow exposes.
type Mode int

const (
	// ModePerFile exposes editable title, description and tags per file.
	ModePerFile Mode = iota
	// ModeSimple defaults titles from filenames and applies one tag set to
	// the whole batch.
	ModeSimple
)

// RawFile is an upload candidate before admission to the queue.
type RawFile struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// Preview is a revocable preview resource tied to one queued file. It must
// be released exactly once.
type Preview interface {
	Release()
}

// PreviewFactory creates the preview resource for an admitted file. A nil
// factory disables previews.
type PreviewFactory func(f RawFile) Preview

// PendingFile is a queued, not-yet-uploaded file. The id is opaque and
// distinct from the collision-prone filename.
type PendingFile struct {
	ID          string
	Name        string
	Size        int64
	ContentType string
	Data        []byte

	preview Preview
}

// Metadata holds the editable per-file fields, keyed by PendingFile id.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// MetadataPatch is a shallow-merge update: nil fields are left untouched.
type MetadataPatch struct {
	Title       *string
	Description *string
	Tags        *[]string
}

// Queue is the in-memory ordered collection of selected files plus their
// metadata and validation errors.
type Queue struct {
	mu          sync.Mutex
	mode        Mode
	titleMaxLen int
	previews    PreviewFactory
	notifier    Notifier

	files     []*PendingFile
	metadata  map[string]*Metadata
	errors    FieldErrors
	batchTags []string

	// resetHook lets the selection surface clear its own input state when
	// the queue is cleared.
	resetHook func()
}

type QueueOption func(*Queue)

func WithMode(mode Mode) QueueOption {
	return func(q *Queue) { q.mode = mode }
}

func WithTitleMaxLen(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.titleMaxLen = n
		}
	}
}

func WithPreviewFactory(f PreviewFactory) QueueOption {
	return func(q *Queue) { q.previews = f }
}

func NewQueue(notifier Notifier, opts ...QueueOption) *Queue {
	if notifier == nil {
		notifier = SlogNotifier{}
	}
	q := &Queue{
		notifier:    notifier,
		titleMaxLen: DefaultTitleMaxLen,
		metadata:    make(map[string]*Metadata),
		errors:      make(FieldErrors),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnReset registers the external reset hook fired when the queue is cleared.
func (q *Queue) OnReset(hook func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetHook = hook
}

// SetBatchTags sets the batch-wide tag list used in ModeSimple.
func (q *Queue) SetBatchTags(tags []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batchTags = tags
}

// BatchTags returns a copy of the batch-wide tag list.
func (q *Queue) BatchTags() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.batchTags...)
}

func (q *Queue) Mode() Mode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mode
}

// AddFiles validates each candidate independently, drops duplicates
// (identical name and size) and admits the rest. If admitting the batch
// would push the queue past MaxFiles, the entire batch is rejected with a
// single capacity error and nothing is added.
func (q *Queue) AddFiles(raw []RawFile) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var admitted []RawFile
	for _, f := range raw {
		if msgs := validateFile(f); len(msgs) > 0 {
			for _, msg := range msgs {
				q.notifier.Error(fmt.Sprintf("file %q: %s", f.Name, msg))
			}
			continue
		}
		if q.isDuplicate(f) {
			q.notifier.Error(fmt.Sprintf("file %q is already selected", f.Name))
			continue
		}
		admitted = append(admitted, f)
	}

	if len(q.files)+len(admitted) > MaxFiles {
		q.notifier.Error(fmt.Sprintf("cannot queue more than %d files in total", MaxFiles))
		return
	}

	for _, f := range admitted {
		pf := &PendingFile{
			ID:          uuid.NewString(),
			Name:        f.Name,
			Size:        f.Size,
			ContentType: f.ContentType,
			Data:        f.Data,
		}
		if q.previews != nil {
			pf.preview = q.previews(f)
		}
		q.files = append(q.files, pf)
		q.metadata[pf.ID] = &Metadata{
			Title: strings.TrimSuffix(f.Name, path.Ext(f.Name)),
		}
	}

	if len(admitted) > 0 {
		q.notifier.Success(fmt.Sprintf("%d file(s) added", len(admitted)))
	}
}

func (q *Queue) isDuplicate(f RawFile) bool {
	for _, existing := range q.files {
		if existing.Name == f.Name && existing.Size == f.Size {
			return true
		}
	}
	return false
}

// RemoveFile releases the file's preview and drops the file, its metadata
// and its error set. Unknown ids are a no-op.
func (q *Queue) RemoveFile(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, f := range q.files {
		if f.ID != id {
			continue
		}
		if f.preview != nil {
			f.preview.Release()
		}
		q.files = append(q.files[:i], q.files[i+1:]...)
		delete(q.metadata, id)
		delete(q.errors, id)
		return
	}
}

// UpdateMetadata shallow-merges the patch into the file's metadata and
// clears any stale validation errors for that file.
func (q *Queue) UpdateMetadata(id string, patch MetadataPatch) {
	q.mu.Lock()
	defer q.mu.Unlock()

	meta, ok := q.metadata[id]
	if !ok {
		return
	}
	if patch.Title != nil {
		meta.Title = *patch.Title
	}
	if patch.Description != nil {
		meta.Description = *patch.Description
	}
	if patch.Tags != nil {
		meta.Tags = *patch.Tags
	}
	delete(q.errors, id)
}

// ClearErrors drops the error set for one file, or every error when id is
// empty.
func (q *Queue) ClearErrors(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id == "" {
		q.errors = make(FieldErrors)
		return
	}
	delete(q.errors, id)
}

// Clear releases every preview exactly once, empties the queue and fires the
// registered reset hook.
func (q *Queue) Clear() {
	q.mu.Lock()
	for _, f := range q.files {
		if f.preview != nil {
			f.preview.Release()
			f.preview = nil
		}
	}
	q.files = nil
	q.metadata = make(map[string]*Metadata)
	q.errors = make(FieldErrors)
	hook := q.resetHook
	q.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Files returns the queued files in selection order.
func (q *Queue) Files() []*PendingFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*PendingFile, len(q.files))
	copy(out, q.files)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

// MetadataFor returns a copy of the file's metadata.
func (q *Queue) MetadataFor(id string) (Metadata, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	meta, ok := q.metadata[id]
	if !ok {
		return Metadata{}, false
	}
	return *meta, true
}

// Errors returns the current validation error sets.
func (q *Queue) Errors() FieldErrors {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(FieldErrors, len(q.errors))
	for id, msgs := range q.errors {
		out[id] = append([]string(nil), msgs...)
	}
	return out
}

// TotalSize is the byte sum of all queued files.
func (q *Queue) TotalSize() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var total int64
	for _, f := range q.files {
		total += f.Size
	}
	return total
}

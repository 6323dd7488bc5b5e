package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/belkahq/belka/internal/media"
)

var (
	ErrUploadInProgress = errors.New("upload already in progress")
	ErrValidationFailed = errors.New("validation failed")
)

// State is the orchestrator's upload state.
type State int

const (
	StateIdle State = iota
	StateUploading
)

// Progress is a snapshot of one upload run.
type Progress struct {
	State          State
	Uploaded       int
	Total          int
	CurrentFile    string
	PartialFailure bool
}

// Navigator is invoked after a successful run to leave the upload surface.
type Navigator interface {
	Navigate(path string)
}

// Orchestrator drives the queued files through sequential ingestion
// requests, one in flight at a time. Sequential order keeps progress
// reporting deterministic and partial-failure accounting per file.
type Orchestrator struct {
	queue    *Queue
	client   APIClient
	notifier Notifier

	navigator     Navigator
	navigateDelay time.Duration
	navigateTo    string

	mu             sync.Mutex
	state          State
	uploaded       int
	total          int
	currentFile    string
	partialFailure bool
}

type OrchestratorOption func(*Orchestrator)

// WithNavigator schedules navigation to path after a successful run.
func WithNavigator(n Navigator, path string, delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.navigator = n
		o.navigateTo = path
		o.navigateDelay = delay
	}
}

func NewOrchestrator(queue *Queue, client APIClient, notifier Notifier, opts ...OrchestratorOption) *Orchestrator {
	if notifier == nil {
		notifier = SlogNotifier{}
	}
	o := &Orchestrator{
		queue:         queue,
		client:        client,
		notifier:      notifier,
		navigateDelay: 2 * time.Second,
		navigateTo:    "/",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Progress{
		State:          o.state,
		Uploaded:       o.uploaded,
		Total:          o.total,
		CurrentFile:    o.currentFile,
		PartialFailure: o.partialFailure,
	}
}

// ClearAll empties the queue and resets the progress counters.
func (o *Orchestrator) ClearAll() {
	o.queue.Clear()
	o.mu.Lock()
	o.uploaded = 0
	o.total = 0
	o.currentFile = ""
	o.partialFailure = false
	o.mu.Unlock()
}

// Run validates the queue and uploads every file strictly in queue order.
// A single file's failure never aborts the batch. If at least one file
// succeeded the queue is cleared and navigation is scheduled; if none did,
// the queue is left intact for a retry. The state always returns to idle.
func (o *Orchestrator) Run(ctx context.Context) error {
	if errs := o.queue.Validate(); !errs.Empty() {
		for _, msg := range errs.Messages() {
			o.notifier.Error(msg)
		}
		return ErrValidationFailed
	}

	files := o.queue.Files()

	o.mu.Lock()
	if o.state == StateUploading {
		o.mu.Unlock()
		return ErrUploadInProgress
	}
	o.state = StateUploading
	o.uploaded = 0
	o.total = len(files)
	o.currentFile = ""
	o.partialFailure = false
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.currentFile = ""
		o.mu.Unlock()
	}()

	succeeded := 0
	for _, f := range files {
		o.setCurrent(f.Name)

		req := o.buildRequest(f)
		if err := o.client.UploadImage(ctx, req); err != nil {
			o.notifier.Error(fmt.Sprintf("failed to upload %q: %v", f.Name, err))
			o.markPartialFailure()
			continue
		}

		succeeded++
		o.setUploaded(succeeded)
		if succeeded < len(files) {
			o.notifier.Info(fmt.Sprintf("uploaded %d/%d files...", succeeded, len(files)))
		}
	}

	if succeeded == 0 {
		return nil
	}

	if succeeded == len(files) {
		o.notifier.Success(fmt.Sprintf("all %d files uploaded", succeeded))
	} else {
		o.notifier.Success(fmt.Sprintf("uploaded %d of %d files", succeeded, len(files)))
	}

	o.ClearAll()

	if o.navigator != nil {
		// Leave the success notification on screen before navigating away.
		nav, path := o.navigator, o.navigateTo
		time.AfterFunc(o.navigateDelay, func() { nav.Navigate(path) })
	}
	return nil
}

func (o *Orchestrator) buildRequest(f *PendingFile) UploadRequest {
	meta, _ := o.queue.MetadataFor(f.ID)

	tags := meta.Tags
	title := meta.Title
	description := meta.Description
	if o.queue.Mode() == ModeSimple {
		tags = o.queue.BatchTags()
		description = ""
	}

	req := UploadRequest{
		FileName:    f.Name,
		ContentType: f.ContentType,
		Data:        f.Data,
		Title:       title,
		Description: description,
		Tags:        tags,
	}

	// Dimension extraction is best effort; the server falls back to its own.
	if w, h, err := media.Dimensions(bytes.NewReader(f.Data)); err == nil {
		req.Width = w
		req.Height = h
	}
	return req
}

func (o *Orchestrator) setCurrent(name string) {
	o.mu.Lock()
	o.currentFile = name
	o.mu.Unlock()
}

func (o *Orchestrator) setUploaded(n int) {
	o.mu.Lock()
	o.uploaded = n
	o.mu.Unlock()
}

func (o *Orchestrator) markPartialFailure() {
	o.mu.Lock()
	o.partialFailure = true
	o.mu.Unlock()
}

package uploader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]bool
	block    chan struct{}
	observed func(req UploadRequest)
}

func (c *fakeClient) UploadImage(_ context.Context, req UploadRequest) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.calls = append(c.calls, req.FileName)
	c.mu.Unlock()
	if c.observed != nil {
		c.observed(req)
	}
	if c.failFor[req.FileName] {
		return &HTTPError{Status: 500, Message: "storage down"}
	}
	return nil
}

func (c *fakeClient) callNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type chanNavigator struct {
	ch chan string
}

func (n *chanNavigator) Navigate(path string) { n.ch <- path }

func queueWith(t *testing.T, names ...string) *Queue {
	t.Helper()
	q := NewQueue(&recordNotifier{})
	var files []RawFile
	for i, name := range names {
		files = append(files, validFile(name, int64(100+i)))
	}
	q.AddFiles(files)
	require.Equal(t, len(names), q.Len())
	return q
}

func TestRunSequentialOrdering(t *testing.T) {
	q := queueWith(t, "f1.jpg", "f2.jpg", "f3.jpg")
	client := &fakeClient{}
	o := NewOrchestrator(q, client, &recordNotifier{})

	var counts []int
	client.observed = func(UploadRequest) {
		// Completed count at request time equals requests finished so far.
		counts = append(counts, o.Progress().Uploaded)
	}

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"f1.jpg", "f2.jpg", "f3.jpg"}, client.callNames())
	assert.Equal(t, []int{0, 1, 2}, counts, "completed count is monotone and bounded")
	assert.Equal(t, StateIdle, o.Progress().State)
}

func TestRunPartialFailureClearsQueue(t *testing.T) {
	q := queueWith(t, "f1.jpg", "f2.jpg", "f3.jpg")
	n := &recordNotifier{}
	client := &fakeClient{failFor: map[string]bool{"f2.jpg": true}}
	o := NewOrchestrator(q, client, n)

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"f1.jpg", "f2.jpg", "f3.jpg"}, client.callNames(), "failure never aborts siblings")
	assert.Equal(t, 0, q.Len(), "queue cleared when at least one file succeeded")
	require.NotEmpty(t, n.successes)
	assert.Contains(t, n.successes[len(n.successes)-1], "2 of 3")
	require.NotEmpty(t, n.errors)
	assert.Contains(t, n.errors[0], "f2.jpg")
}

func TestRunTotalFailureKeepsQueue(t *testing.T) {
	q := queueWith(t, "f1.jpg", "f2.jpg")
	client := &fakeClient{failFor: map[string]bool{"f1.jpg": true, "f2.jpg": true}}
	o := NewOrchestrator(q, client, &recordNotifier{})

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, 2, q.Len(), "queue left intact so the user can retry")
	p := o.Progress()
	assert.Equal(t, StateIdle, p.State)
	assert.Equal(t, 0, p.Uploaded)
	assert.True(t, p.PartialFailure)
}

func TestRunValidationFailureSkipsNetwork(t *testing.T) {
	q := queueWith(t, "f1.jpg")
	id := q.Files()[0].ID
	empty := ""
	q.UpdateMetadata(id, MetadataPatch{Title: &empty})

	client := &fakeClient{}
	o := NewOrchestrator(q, client, &recordNotifier{})

	err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, client.callNames(), "no network activity on validation failure")
	assert.Equal(t, 1, q.Len())
}

func TestRunSingleActiveRun(t *testing.T) {
	q := queueWith(t, "f1.jpg")
	client := &fakeClient{block: make(chan struct{})}
	o := NewOrchestrator(q, client, &recordNotifier{})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	// Wait for the first run to enter the uploading state.
	require.Eventually(t, func() bool {
		return o.Progress().State == StateUploading
	}, time.Second, time.Millisecond)

	err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrUploadInProgress)

	close(client.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, o.Progress().State)
}

func TestRunSchedulesNavigationAfterSuccess(t *testing.T) {
	q := queueWith(t, "f1.jpg")
	nav := &chanNavigator{ch: make(chan string, 1)}
	o := NewOrchestrator(q, &fakeClient{}, &recordNotifier{}, WithNavigator(nav, "/", 5*time.Millisecond))

	require.NoError(t, o.Run(context.Background()))

	select {
	case path := <-nav.ch:
		assert.Equal(t, "/", path)
	case <-time.After(time.Second):
		t.Fatal("navigation was not scheduled")
	}
}

func TestRunNoNavigationOnTotalFailure(t *testing.T) {
	q := queueWith(t, "f1.jpg")
	nav := &chanNavigator{ch: make(chan string, 1)}
	client := &fakeClient{failFor: map[string]bool{"f1.jpg": true}}
	o := NewOrchestrator(q, client, &recordNotifier{}, WithNavigator(nav, "/", time.Millisecond))

	require.NoError(t, o.Run(context.Background()))

	select {
	case <-nav.ch:
		t.Fatal("must not navigate when nothing uploaded")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunSimpleModeUsesBatchTags(t *testing.T) {
	q := NewQueue(&recordNotifier{}, WithMode(ModeSimple))
	q.AddFiles([]RawFile{validFile("viaggio.jpg", 100)})
	q.SetBatchTags([]string{"#mare", "#estate"})

	var got UploadRequest
	client := &fakeClient{observed: func(req UploadRequest) { got = req }}
	o := NewOrchestrator(q, client, &recordNotifier{})

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, "viaggio", got.Title, "title defaults from filename")
	assert.Empty(t, got.Description)
	assert.Equal(t, []string{"#mare", "#estate"}, got.Tags)
}

func TestHTTPErrorMessage(t *testing.T) {
	err := &HTTPError{Status: 500, Message: "boom"}
	assert.Equal(t, "HTTP 500: boom", err.Error())
	var target *HTTPError
	assert.True(t, errors.As(err, &target))
}

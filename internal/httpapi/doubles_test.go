package httpapi

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/belkahq/belka/internal/store"
)

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu     sync.Mutex
	images map[string]*store.Image
	tags   map[string]map[string]store.Tag // userID -> name -> tag
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		images: make(map[string]*store.Image),
		tags:   make(map[string]map[string]store.Tag),
	}
}

func (r *fakeRepo) CreateImage(_ context.Context, userID string, in store.ImageCreate) (*store.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	img := &store.Image{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Tags:        in.Tags,
		ImagePath:   in.ImagePath,
		Metadata:    store.NewMetadata(in.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.images[img.ID] = img
	return img, nil
}

func (r *fakeRepo) GetImage(_ context.Context, userID, id string) (*store.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok || img.UserID != userID {
		return nil, store.ErrNotFound
	}
	return img, nil
}

func (r *fakeRepo) ListImages(_ context.Context, userID string) ([]store.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Image
	for _, img := range r.images {
		if img.UserID == userID {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) ListImagesByTag(ctx context.Context, userID, tag string) ([]store.Image, error) {
	all, err := r.ListImages(ctx, userID)
	if err != nil {
		return nil, err
	}
	norm := store.NormalizeTag(tag)
	var out []store.Image
	for _, img := range all {
		for _, t := range img.Tags {
			if t == norm {
				out = append(out, img)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateImage(_ context.Context, userID, id string, upd store.ImageUpdate) (*store.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok || img.UserID != userID {
		return nil, store.ErrNotFound
	}
	if upd.Title != nil {
		img.Title = *upd.Title
	}
	if upd.Description != nil {
		img.Description = *upd.Description
	}
	if upd.Tags != nil {
		img.Tags = store.NormalizeTags(*upd.Tags)
	}
	if upd.Metadata != nil {
		img.Metadata = store.NewMetadata(*upd.Metadata)
	}
	img.UpdatedAt = time.Now().UTC()
	return img, nil
}

func (r *fakeRepo) DeleteImage(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok || img.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *fakeRepo) UpsertTags(_ context.Context, userID string, names []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tags[userID] == nil {
		r.tags[userID] = make(map[string]store.Tag)
	}
	norm := store.NormalizeTags(names)
	for _, name := range norm {
		if _, ok := r.tags[userID][name]; !ok {
			r.tags[userID][name] = store.Tag{ID: uuid.NewString(), UserID: userID, Name: name, CreatedAt: time.Now().UTC()}
		}
	}
	return norm, nil
}

func (r *fakeRepo) ListTags(_ context.Context, userID, query string, _ int) ([]store.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Tag
	for _, t := range r.tags[userID] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeRepo) TagUsage(ctx context.Context, userID string) ([]store.TagUsage, error) {
	all, err := r.ListImages(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, img := range all {
		for _, t := range img.Tags {
			counts[t]++
		}
	}
	var out []store.TagUsage
	for name, count := range counts {
		out = append(out, store.TagUsage{Name: name, Count: count})
	}
	return out, nil
}

func (r *fakeRepo) CleanupUnusedTags(ctx context.Context, userID string) (int, error) {
	usage, _ := r.TagUsage(ctx, userID)
	used := make(map[string]struct{})
	for _, u := range usage {
		used[u.Name] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name := range r.tags[userID] {
		if _, ok := used[name]; !ok {
			delete(r.tags[userID], name)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeRepo) DeleteTag(_ context.Context, userID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tags[userID][store.NormalizeTag(name)]; !ok {
		return store.ErrNotFound
	}
	delete(r.tags[userID], store.NormalizeTag(name))
	return nil
}

func (r *fakeRepo) Ping(context.Context) error { return nil }

type signCall struct {
	Path   string
	Expiry time.Duration
}

// fakeBlob records object-store interactions.
type fakeBlob struct {
	mu        sync.Mutex
	objects   map[string][]byte
	signCalls []signCall
	putErr    error
	signErr   error
	removeErr error
	removed   []string
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (b *fakeBlob) Put(_ context.Context, path string, data []byte, _, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	if _, exists := b.objects[path]; exists {
		return errors.New("object already exists")
	}
	b.objects[path] = data
	return nil
}

func (b *fakeBlob) SignedURL(_ context.Context, path string, expiry time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signCalls = append(b.signCalls, signCall{Path: path, Expiry: expiry})
	if b.signErr != nil {
		return "", b.signErr
	}
	return "https://signed.example/" + path, nil
}

func (b *fakeBlob) Remove(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.removeErr != nil {
		return b.removeErr
	}
	b.removed = append(b.removed, path)
	return nil
}

func (b *fakeBlob) EnsureBucket(context.Context) error { return nil }

func (b *fakeBlob) calls() []signCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]signCall(nil), b.signCalls...)
}

// fakeThumbs returns a fixed rendition map, or fails wholesale.
type fakeThumbs struct {
	err   error
	calls int
}

func (f *fakeThumbs) Generate(_ context.Context, _ []byte, ownerID, storedName string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	base := storedName
	return map[string]string{
		"small":  ownerID + "/thumbnails/small_" + base,
		"medium": ownerID + "/thumbnails/medium_" + base,
		"large":  ownerID + "/thumbnails/large_" + base,
	}, nil
}

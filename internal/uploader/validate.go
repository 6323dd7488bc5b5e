package uploader

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const (
	// MaxFileBytes caps a single upload at 10 MiB.
	MaxFileBytes = int64(10 * 1024 * 1024)
	// MaxFiles caps the whole queue.
	MaxFiles = 20
	// MaxDescriptionLen bounds the optional per-file description.
	MaxDescriptionLen = 100
	// MaxTagsPerFile bounds the tag list of one file.
	MaxTagsPerFile = 10
	// DefaultTitleMaxLen is the title bound unless configured otherwise.
	DefaultTitleMaxLen = 30
)

var supportedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

var tagPattern = regexp.MustCompile(`^#[A-Za-z0-9_]+$`)

// FieldErrors groups validation messages by owning file id. The empty id
// holds batch-scoped errors not attributable to one file.
type FieldErrors map[string][]string

func (e FieldErrors) add(id, msg string) {
	e[id] = append(e[id], msg)
}

func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// Messages flattens all errors in no particular scope order.
func (e FieldErrors) Messages() []string {
	var out []string
	for _, msgs := range e {
		out = append(out, msgs...)
	}
	return out
}

// validateFile checks one candidate independently of queue state.
func validateFile(f RawFile) []string {
	var errs []string
	if f.Name == "" {
		errs = append(errs, "file name is required")
	}
	if f.Size <= 0 {
		errs = append(errs, "file cannot be empty")
	}
	if f.Size > MaxFileBytes {
		errs = append(errs, "file size must be less than 10MB")
	}
	if len(f.ContentType) < 6 || f.ContentType[:6] != "image/" {
		errs = append(errs, "only image files are allowed")
	} else if _, ok := supportedTypes[f.ContentType]; !ok {
		errs = append(errs, "only JPEG, PNG, WebP, and GIF images are supported")
	}
	return errs
}

// ValidateTag reports whether a tag label is well formed.
func ValidateTag(label string) bool {
	return tagPattern.MatchString(label)
}

// Validate runs the pre-upload whole-batch checks and records the result as
// the queue's current error sets.
func (q *Queue) Validate() FieldErrors {
	q.mu.Lock()
	defer q.mu.Unlock()
	errs := q.validateBatch()
	q.errors = errs
	out := make(FieldErrors, len(errs))
	for id, msgs := range errs {
		out[id] = append([]string(nil), msgs...)
	}
	return out
}

// validateBatch runs the pre-upload whole-batch checks. In ModeSimple the
// per-file metadata fields are not user-editable and only the batch-wide
// tags are checked.
func (q *Queue) validateBatch() FieldErrors {
	errs := make(FieldErrors)
	if len(q.files) == 0 {
		errs.add("", "at least one file is required")
		return errs
	}

	if q.mode == ModeSimple {
		validateTags(errs, "", q.batchTags)
		return errs
	}

	for _, f := range q.files {
		meta := q.metadata[f.ID]
		if meta == nil {
			errs.add(f.ID, fmt.Sprintf("missing metadata for %q", f.Name))
			continue
		}
		if meta.Title == "" {
			errs.add(f.ID, "title is required")
		}
		if utf8.RuneCountInString(meta.Title) > q.titleMaxLen {
			errs.add(f.ID, fmt.Sprintf("title must be at most %d characters", q.titleMaxLen))
		}
		if utf8.RuneCountInString(meta.Description) > MaxDescriptionLen {
			errs.add(f.ID, fmt.Sprintf("description must be at most %d characters", MaxDescriptionLen))
		}
		validateTags(errs, f.ID, meta.Tags)
	}
	return errs
}

func validateTags(errs FieldErrors, id string, tags []string) {
	if len(tags) > MaxTagsPerFile {
		errs.add(id, fmt.Sprintf("maximum %d tags allowed", MaxTagsPerFile))
	}
	for _, tag := range tags {
		if !ValidateTag(tag) {
			errs.add(id, fmt.Sprintf("tag %q must start with # and contain only letters, numbers, and underscores", tag))
		}
	}
}

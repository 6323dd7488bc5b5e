package uploader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTag(t *testing.T) {
	valid := []string{"#mare", "#Estate", "#foto_2024", "#A"}
	for _, tag := range valid {
		assert.True(t, ValidateTag(tag), "expected %q to be valid", tag)
	}
	invalid := []string{"mare", "#", "#due parole", "#città", "##x", ""}
	for _, tag := range invalid {
		assert.False(t, ValidateTag(tag), "expected %q to be invalid", tag)
	}
}

func TestValidateEmptyQueue(t *testing.T) {
	q := NewQueue(&recordNotifier{})
	errs := q.Validate()
	require.False(t, errs.Empty())
	assert.NotEmpty(t, errs[""], "empty queue is a batch-scoped error")
}

func TestValidateTitleBounds(t *testing.T) {
	q := NewQueue(&recordNotifier{})
	q.AddFiles([]RawFile{validFile("a.jpg", 1)})
	id := q.Files()[0].ID

	long := strings.Repeat("x", DefaultTitleMaxLen+1)
	q.UpdateMetadata(id, MetadataPatch{Title: &long})
	errs := q.Validate()
	require.NotEmpty(t, errs[id])

	ok := strings.Repeat("x", DefaultTitleMaxLen)
	q.UpdateMetadata(id, MetadataPatch{Title: &ok})
	assert.True(t, q.Validate().Empty())
}

func TestValidateTitleBoundCountsRunes(t *testing.T) {
	q := NewQueue(&recordNotifier{})
	q.AddFiles([]RawFile{validFile("a.jpg", 1)})
	id := q.Files()[0].ID

	// 30 characters but 60 bytes: the bound is on characters.
	accented := strings.Repeat("à", DefaultTitleMaxLen)
	q.UpdateMetadata(id, MetadataPatch{Title: &accented})
	assert.True(t, q.Validate().Empty(), "multi-byte title within the bound must pass")

	over := strings.Repeat("à", DefaultTitleMaxLen+1)
	q.UpdateMetadata(id, MetadataPatch{Title: &over})
	require.NotEmpty(t, q.Validate()[id])

	desc := strings.Repeat("è", MaxDescriptionLen)
	ok := "titolo"
	q.UpdateMetadata(id, MetadataPatch{Title: &ok, Description: &desc})
	assert.True(t, q.Validate().Empty(), "multi-byte description within the bound must pass")
}

func TestValidateConfigurableTitleBound(t *testing.T) {
	q := NewQueue(&recordNotifier{}, WithTitleMaxLen(50))
	q.AddFiles([]RawFile{validFile("a.jpg", 1)})
	id := q.Files()[0].ID

	title := strings.Repeat("x", 40)
	q.UpdateMetadata(id, MetadataPatch{Title: &title})
	assert.True(t, q.Validate().Empty(), "40 chars fits the 50-char bound")
}

func TestValidateDescriptionAndTagCount(t *testing.T) {
	q := NewQueue(&recordNotifier{})
	q.AddFiles([]RawFile{validFile("a.jpg", 1)})
	id := q.Files()[0].ID

	desc := strings.Repeat("d", MaxDescriptionLen+1)
	q.UpdateMetadata(id, MetadataPatch{Description: &desc})
	require.NotEmpty(t, q.Validate()[id])

	okDesc := strings.Repeat("d", MaxDescriptionLen)
	tags := make([]string, MaxTagsPerFile+1)
	for i := range tags {
		tags[i] = "#tag" + string(rune('a'+i))
	}
	q.UpdateMetadata(id, MetadataPatch{Description: &okDesc, Tags: &tags})
	require.NotEmpty(t, q.Validate()[id], "too many tags")

	ten := tags[:MaxTagsPerFile]
	q.UpdateMetadata(id, MetadataPatch{Tags: &ten})
	assert.True(t, q.Validate().Empty())
}

func TestValidateBadTagLabel(t *testing.T) {
	q := NewQueue(&recordNotifier{})
	q.AddFiles([]RawFile{validFile("a.jpg", 1)})
	id := q.Files()[0].ID

	tags := []string{"#ok", "senza-cancelletto"}
	q.UpdateMetadata(id, MetadataPatch{Tags: &tags})
	errs := q.Validate()
	require.NotEmpty(t, errs[id])
	assert.Contains(t, errs[id][0], "senza-cancelletto")
}

func TestValidateSimpleModeChecksBatchTags(t *testing.T) {
	q := NewQueue(&recordNotifier{}, WithMode(ModeSimple))
	q.AddFiles([]RawFile{validFile("a.jpg", 1)})

	q.SetBatchTags([]string{"bad tag"})
	errs := q.Validate()
	require.NotEmpty(t, errs[""], "batch-wide tags report unscoped errors")

	q.SetBatchTags([]string{"#mare"})
	assert.True(t, q.Validate().Empty())
}

package store

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
)

func NormalizeTag(in string) string {
	trimmed := strings.TrimSpace(in)
	if trimmed == "" {
		return ""
	}
	collapsed := strings.Join(strings.Fields(trimmed), " ")
	return strings.ToLower(collapsed)
}

func NormalizeTags(tags []string) []string {
	set := make(map[string]struct{})
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UpsertTags creates the owner's missing tag rows and leaves existing ones
// untouched. Returns the normalized set that was persisted.
func (s *Store) UpsertTags(ctx context.Context, userID string, names []string) ([]string, error) {
	norm := NormalizeTags(names)
	for _, name := range norm {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO tag (id, user_id, name) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = name",
			uuid.NewString(), userID, name,
		)
		if err != nil {
			return nil, err
		}
	}
	return norm, nil
}

// ListTags returns the owner's tags alphabetically, optionally filtered by a
// case-insensitive substring query.
func (s *Store) ListTags(ctx context.Context, userID, query string, limit int) ([]Tag, error) {
	if limit <= 0 {
		limit = 100
	}
	where := "WHERE user_id = ?"
	args := []any{userID}
	if query != "" {
		where += " AND name LIKE ?"
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(query))+"%")
	}
	args = append(args, limit)

	var tags []Tag
	sql := "SELECT id, user_id, name, created_at FROM tag " + where + " ORDER BY name LIMIT ?"
	if err := s.db.SelectContext(ctx, &tags, sql, args...); err != nil {
		return nil, err
	}
	return tags, nil
}

func (s *Store) DeleteTag(ctx context.Context, userID, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tag WHERE user_id = ? AND name = ?", userID, NormalizeTag(name))
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TagUsage counts tag occurrences across the owner's image records.
func (s *Store) TagUsage(ctx context.Context, userID string) ([]TagUsage, error) {
	var lists []StringList
	if err := s.db.SelectContext(ctx, &lists, "SELECT tags FROM image WHERE user_id = ?", userID); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, tags := range lists {
		for _, t := range tags {
			counts[t]++
		}
	}
	usage := make([]TagUsage, 0, len(counts))
	for name, count := range counts {
		usage = append(usage, TagUsage{Name: name, Count: count})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Count != usage[j].Count {
			return usage[i].Count > usage[j].Count
		}
		return usage[i].Name < usage[j].Name
	})
	return usage, nil
}

// CleanupUnusedTags deletes the owner's tag rows referenced by no image.
// Returns the number of tags removed.
func (s *Store) CleanupUnusedTags(ctx context.Context, userID string) (int, error) {
	var tags []Tag
	if err := s.db.SelectContext(ctx, &tags, "SELECT id, user_id, name, created_at FROM tag WHERE user_id = ?", userID); err != nil {
		return 0, err
	}
	usage, err := s.TagUsage(ctx, userID)
	if err != nil {
		return 0, err
	}
	used := make(map[string]struct{}, len(usage))
	for _, u := range usage {
		used[u.Name] = struct{}{}
	}

	removed := 0
	for _, t := range tags {
		if _, ok := used[t.Name]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM tag WHERE id = ?", t.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

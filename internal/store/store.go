package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")

const imageColumns = "id, user_id, title, description, tags, image_path, metadata, created_at, updated_at"

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateImage(ctx context.Context, userID string, in ImageCreate) (*Image, error) {
	id := uuid.NewString()
	query := `INSERT INTO image (id, user_id, title, description, tags, image_path, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		id, userID, in.Title, in.Description, StringList(in.Tags), in.ImagePath, NewMetadata(in.Metadata),
	)
	if err != nil {
		return nil, err
	}
	return s.GetImage(ctx, userID, id)
}

func (s *Store) GetImage(ctx context.Context, userID, id string) (*Image, error) {
	query := "SELECT " + imageColumns + " FROM image WHERE id = ? AND user_id = ?"
	var img Image
	err := s.db.GetContext(ctx, &img, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// ListImages returns the owner's images newest first.
func (s *Store) ListImages(ctx context.Context, userID string) ([]Image, error) {
	query := "SELECT " + imageColumns + " FROM image WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	var images []Image
	if err := s.db.SelectContext(ctx, &images, query, userID); err != nil {
		return nil, err
	}
	return images, nil
}

// ListImagesByTag filters on the denormalized tag list of each record.
func (s *Store) ListImagesByTag(ctx context.Context, userID, tag string) ([]Image, error) {
	query := "SELECT " + imageColumns + ` FROM image
	WHERE user_id = ? AND JSON_CONTAINS(tags, JSON_QUOTE(?))
	ORDER BY created_at DESC, id DESC`
	var images []Image
	if err := s.db.SelectContext(ctx, &images, query, userID, NormalizeTag(tag)); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *Store) UpdateImage(ctx context.Context, userID, id string, upd ImageUpdate) (*Image, error) {
	setParts := []string{}
	args := []any{}
	if upd.Title != nil {
		setParts = append(setParts, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		setParts = append(setParts, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Tags != nil {
		setParts = append(setParts, "tags = ?")
		args = append(args, StringList(NormalizeTags(*upd.Tags)))
	}
	if upd.Metadata != nil {
		setParts = append(setParts, "metadata = ?")
		args = append(args, NewMetadata(*upd.Metadata))
	}

	if len(setParts) > 0 {
		setParts = append(setParts, "updated_at = NOW()")
		query := "UPDATE image SET " + strings.Join(setParts, ", ") + " WHERE id = ? AND user_id = ?"
		args = append(args, id, userID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			// Distinguish a missing row from an update that changed nothing.
			if _, getErr := s.GetImage(ctx, userID, id); getErr != nil {
				return nil, getErr
			}
		}
	}
	return s.GetImage(ctx, userID, id)
}

func (s *Store) DeleteImage(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM image WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

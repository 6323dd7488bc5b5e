package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a JSON-encoded string array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}
}

// ImageMetadata is the JSON blob assembled at ingestion time. Width, height
// and aspect ratio are absent when dimension extraction failed everywhere.
type ImageMetadata struct {
	Size         int64             `json:"size"`
	Mime         string            `json:"type"`
	OriginalName string            `json:"originalName"`
	Width        int               `json:"width,omitempty"`
	Height       int               `json:"height,omitempty"`
	AspectRatio  float64           `json:"aspectRatio,omitempty"`
	Thumbnails   map[string]string `json:"thumbnails,omitempty"`
	UploadedAt   time.Time         `json:"uploadedAt"`
}

// Metadata wraps ImageMetadata for nullable JSON column storage.
type Metadata struct {
	ImageMetadata
	Valid bool
}

func NewMetadata(m ImageMetadata) Metadata {
	return Metadata{ImageMetadata: m, Valid: true}
}

func (m Metadata) Value() (driver.Value, error) {
	if !m.Valid {
		return nil, nil
	}
	b, err := json.Marshal(m.ImageMetadata)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		m.Valid = true
		return json.Unmarshal(v, &m.ImageMetadata)
	case string:
		m.Valid = true
		return json.Unmarshal([]byte(v), &m.ImageMetadata)
	default:
		return fmt.Errorf("unsupported type for Metadata: %T", src)
	}
}

type Image struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Tags        StringList `db:"tags"`
	ImagePath   string     `db:"image_path"`
	Metadata    Metadata   `db:"metadata"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type ImageCreate struct {
	Title       string
	Description string
	Tags        []string
	ImagePath   string
	Metadata    ImageMetadata
}

type ImageUpdate struct {
	Title       *string
	Description *string
	Tags        *[]string
	Metadata    *ImageMetadata
}

type Tag struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type TagUsage struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

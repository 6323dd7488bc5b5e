package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/belkahq/belka/internal/blob"
	"github.com/belkahq/belka/internal/media"
	"github.com/belkahq/belka/internal/store"
)

// imageJSON is the wire shape of a stored image plus its signed URLs. The
// URLs are computed per request and never persisted.
type imageJSON struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Tags          []string             `json:"tags"`
	ImagePath     string               `json:"image_path"`
	Metadata      *store.ImageMetadata `json:"metadata"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	ImageURL      string               `json:"image_url"`
	ThumbnailURLs map[string]string    `json:"thumbnail_urls,omitempty"`
}

// titleFits checks the configured title bound, counted in characters. An
// unset bound disables the check.
func (s *Server) titleFits(title string) bool {
	return s.cfg.TitleMaxLen <= 0 || utf8.RuneCountInString(title) <= s.cfg.TitleMaxLen
}

// withURLs signs the original and every thumbnail of one image. A failed
// signing call leaves that one URL empty instead of failing the response.
func (s *Server) withURLs(r *http.Request, img *store.Image, expiry time.Duration) imageJSON {
	ctx := r.Context()
	out := imageJSON{
		ID:          img.ID,
		UserID:      img.UserID,
		Title:       img.Title,
		Description: img.Description,
		Tags:        img.Tags,
		ImagePath:   img.ImagePath,
		CreatedAt:   img.CreatedAt,
		UpdatedAt:   img.UpdatedAt,
	}
	if img.Tags == nil {
		out.Tags = []string{}
	}
	if img.Metadata.Valid {
		meta := img.Metadata.ImageMetadata
		out.Metadata = &meta
	}

	url, err := s.blob.SignedURL(ctx, img.ImagePath, expiry)
	if err != nil {
		s.logger.Warn("sign original failed", "path", img.ImagePath, "error", err)
	} else {
		out.ImageURL = url
	}

	if img.Metadata.Valid && len(img.Metadata.Thumbnails) > 0 {
		out.ThumbnailURLs = make(map[string]string, len(img.Metadata.Thumbnails))
		for size, path := range img.Metadata.Thumbnails {
			turl, err := s.blob.SignedURL(ctx, path, expiry)
			if err != nil {
				s.logger.Warn("sign thumbnail failed", "path", path, "error", err)
				continue
			}
			out.ThumbnailURLs[size] = turl
		}
	}
	return out
}

func (s *Server) ListImages(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}

	var (
		images []store.Image
		err    error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		images, err = s.repo.ListImagesByTag(r.Context(), user.ID, tag)
	} else {
		images, err = s.repo.ListImages(r.Context(), user.ID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to fetch images", map[string]any{"error": err.Error()})
		return
	}

	// Signing fans out one call per image; result order matches input order.
	resp := make([]imageJSON, len(images))
	var wg sync.WaitGroup
	for i := range images {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp[i] = s.withURLs(r, &images[i], blob.ListingExpiry)
		}(i)
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to parse multipart", map[string]any{"error": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file and title are required", nil)
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "file and title are required", nil)
		return
	}
	if !s.titleFits(title) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("title must be at most %d characters", s.cfg.TitleMaxLen), nil)
		return
	}
	description := r.FormValue("description")

	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "tags must be a JSON string array", nil)
			return
		}
	}

	width, _ := strconv.Atoi(r.FormValue("width"))
	height, _ := strconv.Atoi(r.FormValue("height"))

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read file", map[string]any{"error": err.Error()})
		return
	}

	// Server-side dimension fallback, best effort. Missing dimensions never
	// fail ingestion.
	if width <= 0 || height <= 0 {
		fw, fh, err := media.Dimensions(bytes.NewReader(data))
		if err != nil {
			s.logger.Warn("dimension extraction failed", "file", header.Filename, "error", err)
			width, height = 0, 0
		} else {
			width, height = fw, fh
		}
	}

	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}

	fileName := media.UniqueFileName(header.Filename)
	filePath := user.ID + "/" + fileName

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	if err := s.blob.Put(r.Context(), filePath, data, contentType, blob.CacheForever); err != nil {
		s.logger.Error("original upload failed", "path", filePath, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to upload file", nil)
		return
	}

	// Thumbnails are best effort: a failure is logged and the record simply
	// carries fewer renditions.
	thumbnails, err := s.thumbs.Generate(r.Context(), data, user.ID, fileName)
	if err != nil {
		s.logger.Warn("thumbnail generation failed", "file", header.Filename, "error", err)
		thumbnails = nil
	}

	normTags := store.NormalizeTags(tags)
	if len(normTags) > 0 {
		if _, err := s.repo.UpsertTags(r.Context(), user.ID, normTags); err != nil {
			s.logger.Warn("tag upsert failed", "error", err)
		}
	}

	meta := store.ImageMetadata{
		Size:         int64(len(data)),
		Mime:         contentType,
		OriginalName: header.Filename,
		Width:        width,
		Height:       height,
		Thumbnails:   thumbnails,
		UploadedAt:   time.Now().UTC(),
	}
	if width > 0 && height > 0 {
		meta.AspectRatio = float64(width) / float64(height)
	}

	img, err := s.repo.CreateImage(r.Context(), user.ID, store.ImageCreate{
		Title:       title,
		Description: description,
		Tags:        normTags,
		ImagePath:   filePath,
		Metadata:    meta,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to persist image", map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, s.withURLs(r, img, blob.ListingExpiry))
}

func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}
	img, err := s.repo.GetImage(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, "not_found", "image not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.withURLs(r, img, blob.ObjectExpiry))
}

type imageUpdateJSON struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Tags        *[]string            `json:"tags"`
	Metadata    *store.ImageMetadata `json:"metadata"`
}

func (s *Server) UpdateImage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}

	var payload imageUpdateJSON
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if payload.Title != nil && !s.titleFits(*payload.Title) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("title must be at most %d characters", s.cfg.TitleMaxLen), nil)
		return
	}

	img, err := s.repo.UpdateImage(r.Context(), user.ID, chi.URLParam(r, "id"), store.ImageUpdate{
		Title:       payload.Title,
		Description: payload.Description,
		Tags:        payload.Tags,
		Metadata:    payload.Metadata,
	})
	if err != nil {
		status := http.StatusInternalServerError
		code := "update_failed"
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		writeError(w, status, code, "could not update image", nil)
		return
	}

	if payload.Tags != nil {
		if _, err := s.repo.UpsertTags(r.Context(), user.ID, *payload.Tags); err != nil {
			s.logger.Warn("tag upsert failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, s.withURLs(r, img, blob.ObjectExpiry))
}

func (s *Server) DeleteImage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}

	img, err := s.repo.GetImage(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, "not_found", "image not found", nil)
		return
	}

	if err := s.repo.DeleteImage(r.Context(), user.ID, img.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, "delete_failed", "could not delete image", nil)
		return
	}

	// Storage cleanup is best effort: the row is already gone, a stranded
	// object only costs space.
	if err := s.blob.Remove(r.Context(), img.ImagePath); err != nil {
		s.logger.Warn("storage delete failed", "path", img.ImagePath, "error", err)
	}
	if img.Metadata.Valid {
		for _, path := range img.Metadata.Thumbnails {
			if err := s.blob.Remove(r.Context(), path); err != nil {
				s.logger.Warn("thumbnail delete failed", "path", path, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

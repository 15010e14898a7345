// Package upload stores files submitted for assignment questions and
// extracts their text so they can be evaluated like typed answers.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/intervue/internal/storage"
)

// DefaultMaxSize is used when Config.MaxSize is not set.
const DefaultMaxSize = 10 << 20

// ErrTooLarge is returned when a file exceeds Config.MaxSize.
var ErrTooLarge = errors.New("file exceeds the upload size limit")

type Config struct {
	Dir     string
	MaxSize int64
}

// Store persists upload records.
type Store interface {
	SaveUpload(u storage.Upload) (storage.Upload, error)
	DeleteUpload(id string) error
}

// Uploader writes files under Config.Dir/<session>/<uuid>-<name>.
type Uploader struct {
	cfg    Config
	store  Store
	logger *slog.Logger
}

func New(cfg Config, store Store) *Uploader {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &Uploader{cfg: cfg, store: store, logger: slog.Default()}
}

// MaxSize is the largest accepted file in bytes.
func (u *Uploader) MaxSize() int64 { return u.cfg.MaxSize }

// Save stores the file read from r and records it. Text extraction failures
// are logged and leave the upload without text.
func (u *Uploader) Save(ctx context.Context, sessionID, questionID, fileName, contentType string, r io.Reader) (storage.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.cfg.MaxSize+1))
	if err != nil {
		return storage.Upload{}, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > u.cfg.MaxSize {
		return storage.Upload{}, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return storage.Upload{}, err
	}

	name := cleanName(fileName)
	dir := filepath.Join(u.cfg.Dir, cleanName(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.Upload{}, fmt.Errorf("creating upload dir: %w", err)
	}
	id := uuid.New().String()
	path := filepath.Join(dir, id+"-"+name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return storage.Upload{}, fmt.Errorf("writing upload: %w", err)
	}

	mt := mediaType(contentType, name, data)
	text, err := Extract(mt, data)
	if err != nil {
		u.logger.Warn("text extraction failed", "file", name, "content_type", mt, "error", err)
	}

	rec, err := u.store.SaveUpload(storage.Upload{
		ID:          id,
		SessionID:   sessionID,
		QuestionID:  questionID,
		FileName:    name,
		Path:        path,
		ContentType: mt,
		Size:        int64(len(data)),
		Text:        text,
	})
	if err != nil {
		os.Remove(path)
		return storage.Upload{}, fmt.Errorf("recording upload: %w", err)
	}
	u.logger.Info("upload stored", "upload_id", id, "session_id", sessionID, "size", rec.Size, "content_type", mt)
	return rec, nil
}

// Discard removes a stored file and its record, for uploads whose answer
// was rejected after Save.
func (u *Uploader) Discard(rec storage.Upload) error {
	var errs []error
	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("removing upload file: %w", err))
	}
	if err := u.store.DeleteUpload(rec.ID); err != nil {
		errs = append(errs, fmt.Errorf("deleting upload record: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	u.logger.Info("upload discarded", "upload_id", rec.ID, "session_id", rec.SessionID)
	return nil
}

// Answer is the answer document submitted for an uploaded file.
func Answer(u storage.Upload) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"file_name":      u.FileName,
		"upload_id":      u.ID,
		"content_type":   u.ContentType,
		"size":           u.Size,
		"extracted_text": u.Text,
	})
	return data
}

// cleanName keeps the base name and drops characters that are awkward in paths.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxExtractBytes caps how much of a text upload is copied into extracted_text.
const maxExtractBytes = 4 << 20

type InputDataService struct {
	db    *gorm.DB
	store storage.Store
}

func NewInputDataService(db *gorm.DB, store storage.Store) *InputDataService {
	return &InputDataService{db: db, store: store}
}

type Upload struct {
	ProjectID   uint
	UploadedBy  uint
	Filename    string
	ContentType string
	Body        io.Reader
	Transcript  model.Transcript
	Metadata    model.JSONMap
}

// Upload stores the file body and records it. Text uploads also keep their
// content as extracted text; a supplied transcript marks media as processed.
func (s *InputDataService) Upload(ctx context.Context, up Upload) (*model.InputData, error) {
	var count int64
	if err := s.db.Model(&model.Project{}).Where("id = ?", up.ProjectID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	kind := model.KindFromContentType(up.ContentType)
	body := up.Body
	var text bytes.Buffer
	if kind == model.InputKindText {
		body = io.TeeReader(up.Body, &limitedWriter{w: &text, n: maxExtractBytes})
	}

	key := storage.InputKey(up.ProjectID, up.Filename)
	size, err := s.store.Put(ctx, key, body, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	data := &model.InputData{
		ProjectID:   up.ProjectID,
		Name:        up.Filename,
		Kind:        kind,
		StorageKey:  key,
		ContentType: up.ContentType,
		SizeBytes:   size,
		Status:      model.InputStatusUploaded,
		Transcript:  up.Transcript,
		Metadata:    up.Metadata,
		UploadedBy:  up.UploadedBy,
	}
	if kind == model.InputKindText {
		if utf8.Valid(text.Bytes()) {
			data.ExtractedText = text.String()
			data.Status = model.InputStatusProcessed
		} else {
			data.Status = model.InputStatusFailed
		}
	}
	if len(up.Transcript) > 0 {
		data.Status = model.InputStatusProcessed
	}
	if err := s.db.Create(data).Error; err != nil {
		s.deleteObject(ctx, key)
		return nil, err
	}
	return data, nil
}

// limitedWriter keeps the first n bytes and discards the rest.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		chunk := p
		if len(chunk) > l.n {
			chunk = chunk[:l.n]
		}
		l.w.Write(chunk)
		l.n -= len(chunk)
	}
	return len(p), nil
}

func (s *InputDataService) List(projectID uint, kind, keyword string, page, pageSize int) ([]model.InputData, int64, error) {
	query := s.db.Model(&model.InputData{}).Where("project_id = ?", projectID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if keyword != "" {
		query = query.Where("LOWER(name) LIKE ?"+likeEscape, containsPattern(keyword))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.InputData
	if err := query.Omit("extracted_text", "transcript").Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *InputDataService) GetByID(id uint) (*model.InputData, error) {
	var data model.InputData
	if err := s.db.First(&data, id).Error; err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *InputDataService) Open(ctx context.Context, id uint) (*model.InputData, *storage.Object, error) {
	data, err := s.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if data.StorageKey == "" {
		return nil, nil, gorm.ErrRecordNotFound
	}
	obj, err := s.store.Open(ctx, data.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return data, obj, nil
}

func (s *InputDataService) Update(id uint, updates map[string]interface{}) (*model.InputData, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}
	if tr, ok := updates["transcript"].(model.Transcript); ok && len(tr) > 0 {
		updates["status"] = model.InputStatusProcessed
	}
	if text, ok := updates["extracted_text"].(string); ok && strings.TrimSpace(text) != "" {
		updates["status"] = model.InputStatusProcessed
	}
	if len(updates) > 0 {
		if err := s.db.Model(&model.InputData{ID: id}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

// Delete detaches derived requirements, removes the row, then the stored file.
func (s *InputDataService) Delete(ctx context.Context, id uint) error {
	data, err := s.GetByID(id)
	if err != nil {
		return err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Requirement{}).Where("input_data_id = ?", id).
			Update("input_data_id", nil).Error; err != nil {
			return fmt.Errorf("detach requirements: %w", err)
		}
		return tx.Delete(&model.InputData{}, id).Error
	})
	if err != nil {
		return err
	}
	if data.StorageKey != "" {
		s.deleteObject(ctx, data.StorageKey)
	}
	return nil
}

func (s *InputDataService) deleteObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		zap.L().Warn("delete stored object", zap.String("key", key), zap.Error(err))
	}
}

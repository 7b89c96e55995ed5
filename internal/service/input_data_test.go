package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInputDataService_UploadText(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", model.RoleAnalyst)
	p := env.project(t, owner, "Billing")
	svc := NewInputDataService(env.db, env.store)

	data, err := svc.Upload(ctx, Upload{ProjectID: p.ID, UploadedBy: owner.ID, Filename: "Workshop.TXT",
		ContentType: "text/plain; charset=utf-8", Body: strings.NewReader("we need invoices")})
	require.NoError(t, err)
	assert.Equal(t, model.InputKindText, data.Kind)
	assert.Equal(t, model.InputStatusProcessed, data.Status)
	assert.Equal(t, "we need invoices", data.ExtractedText)
	assert.EqualValues(t, 16, data.SizeBytes)
	assert.True(t, strings.HasSuffix(data.StorageKey, ".txt"))

	_, obj, err := svc.Open(ctx, data.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(obj)
	obj.Close()
	require.NoError(t, err)
	assert.Equal(t, "we need invoices", string(body))

	_, err = svc.Upload(ctx, Upload{ProjectID: 999, Filename: "x.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestInputDataService_MediaAndTranscript(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", model.RoleAnalyst)
	p := env.project(t, owner, "Billing")
	svc := NewInputDataService(env.db, env.store)

	data, err := svc.Upload(ctx, Upload{ProjectID: p.ID, UploadedBy: owner.ID, Filename: "call.mp3",
		ContentType: "audio/mpeg", Body: strings.NewReader("ID3")})
	require.NoError(t, err)
	assert.Equal(t, model.InputKindAudio, data.Kind)
	assert.Equal(t, model.InputStatusUploaded, data.Status)
	assert.Empty(t, data.ExtractedText)

	updated, err := svc.Update(data.ID, map[string]interface{}{
		"transcript": model.Transcript{{Start: 0, End: 4.5, Text: "Hello."}, {Start: 4.5, End: 9, Text: "We need refunds."}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.InputStatusProcessed, updated.Status)
	assert.Equal(t, "Hello. We need refunds.", updated.SourceText())

	list, total, err := svc.List(p.ID, model.InputKindAudio, "", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "call.mp3", list[0].Name)
}

func TestInputDataService_DeleteDetachesRequirements(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", model.RoleAnalyst)
	p := env.project(t, owner, "Billing")
	svc := NewInputDataService(env.db, env.store)

	data, err := svc.Upload(ctx, Upload{ProjectID: p.ID, UploadedBy: owner.ID, Filename: "notes.md",
		ContentType: "text/markdown", Body: strings.NewReader("# notes")})
	require.NoError(t, err)
	r := &model.Requirement{ProjectID: p.ID, InputDataID: &data.ID, Title: "Invoices", CreatorID: owner.ID}
	require.NoError(t, NewRequirementService(env.db).Create(r))

	require.NoError(t, svc.Delete(ctx, data.ID))

	got, err := NewRequirementService(env.db).GetByID(r.ID)
	require.NoError(t, err)
	assert.Nil(t, got.InputDataID)
	_, err = env.store.Open(ctx, data.StorageKey)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, _, err = svc.Open(ctx, data.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

// Package storage keeps uploaded input material and generated documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/reqforge/backend/internal/config"
)

var ErrNotFound = errors.New("object not found")

// Object is an open stored file.
type Object struct {
	io.ReadCloser
	Size        int64
	ContentType string
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalDir)
	case "gcs":
		return NewGCS(ctx, cfg.Bucket, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func InputKey(projectID uint, filename string) string {
	return fmt.Sprintf("input/%d/%s%s", projectID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
}

func DocumentKey(projectID uint) string {
	return fmt.Sprintf("documents/%d/%s.pdf", projectID, uuid.NewString())
}

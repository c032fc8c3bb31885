package appwrite

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/makerforge/print-api/internal/appwrite"
)

// FileStore stores model files in one object storage bucket.
type FileStore struct {
	client *appwrite.Client
	bucket string
}

// NewFileStore returns a FileStore over the given bucket.
func NewFileStore(client *appwrite.Client, bucket string) *FileStore {
	return &FileStore{client: client, bucket: bucket}
}

// Upload stores a file under a fresh id and returns the id plus the public
// view URL.
func (s *FileStore) Upload(ctx context.Context, filename string, content io.Reader) (string, string, error) {
	fileID := uuid.NewString()
	f, err := s.client.CreateFile(ctx, s.bucket, fileID, filename, content)
	if err != nil {
		return "", "", errors.Wrapf(err, "upload %q", filename)
	}
	return f.ID, s.client.FileViewURL(s.bucket, f.ID), nil
}

// Remove deletes a stored file.
func (s *FileStore) Remove(ctx context.Context, fileID string) error {
	if err := s.client.DeleteFile(ctx, s.bucket, fileID); err != nil {
		return errors.Wrapf(err, "delete file %q", fileID)
	}
	return nil
}

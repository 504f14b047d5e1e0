package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fileflow/fileflow-server/internal/store"
)

// Common errors for file operations.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrNotOwner     = errors.New("not the file owner")
	ErrTooLarge     = errors.New("file exceeds size limit")
)

// Service handles file uploads, downloads and bookkeeping. Uploaded files
// are written under uploadDir with generated names; the original name is
// kept in the database only.
type Service struct {
	store     store.FileStore
	uploadDir string
	maxSize   int64
}

// New creates a file service rooted at uploadDir.
func New(st store.FileStore, uploadDir string, maxSize int64) *Service {
	return &Service{store: st, uploadDir: uploadDir, maxSize: maxSize}
}

// Save streams r to disk under a generated name and records the file.
// roomID may be nil for files not attached to a room.
func (s *Service) Save(ctx context.Context, r io.Reader, originalName, mimetype string, size int64, userID int64, roomID *int64) (*store.File, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return nil, ErrTooLarge
	}

	storedName := uuid.New().String() + filepath.Ext(originalName)
	path := filepath.Join(s.uploadDir, storedName)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && written > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	file := &store.File{
		Filename:     storedName,
		OriginalName: originalName,
		Size:         written,
		Mimetype:     mimetype,
		Path:         path,
		UserID:       userID,
		RoomID:       roomID,
	}
	if err := s.store.SaveFile(ctx, file); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("record upload: %w", err)
	}
	return file, nil
}

// Download looks up a file and bumps its download counter. The caller is
// responsible for serving file.Path.
func (s *Service) Download(ctx context.Context, fileID int64) (*store.File, error) {
	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if err := s.store.IncrementDownloadCount(ctx, fileID); err != nil {
		return nil, fmt.Errorf("count download: %w", err)
	}
	file.DownloadCount++
	return file, nil
}

// Get returns file metadata without touching the download counter.
func (s *Service) Get(ctx context.Context, fileID int64) (*store.File, error) {
	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return file, nil
}

// Delete removes a file record and its data. Only the uploader may delete.
func (s *Service) Delete(ctx context.Context, fileID, userID int64) error {
	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	if file.UserID != userID {
		return ErrNotOwner
	}

	if err := s.store.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file data: %w", err)
	}
	return nil
}

// ListUserFiles lists the user's personal files. Files attached to a room are
// listed through ListRoomFiles instead.
func (s *Service) ListUserFiles(ctx context.Context, userID int64) ([]*store.File, error) {
	return s.store.ListUserFiles(ctx, userID)
}

// ListRoomFiles lists files shared into a room.
func (s *Service) ListRoomFiles(ctx context.Context, roomID int64) ([]*store.File, error) {
	return s.store.ListRoomFiles(ctx, roomID)
}

// Package files stores submission uploads on the local disk. Blobs are
// written under random names; original file names live in the database
// record only.
package files

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/assignment"
)

var (
	ErrFileTooLarge       = errors.New("file exceeds the maximum upload size")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
)

// allowedExts is the upload extension allow-list.
var allowedExts = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".ppt":  true,
	".pptx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type LocalStore struct {
	dir     string
	maxSize int64
}

var _ assignment.FileStore = (*LocalStore)(nil) // interface compliance check

func NewLocalStore(conf *core.Config) (*LocalStore, error) {
	if err := os.MkdirAll(conf.Uploads.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &LocalStore{dir: conf.Uploads.Dir, maxSize: conf.Uploads.MaxFileSize}, nil
}

// Validate checks a file header against the allow-list and size cap
// without touching the disk. All headers are validated before any
// blob is written so a rejected batch leaves no partial state.
func (s *LocalStore) Validate(fh *multipart.FileHeader) error {
	if fh.Size > s.maxSize {
		return ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExts[ext] {
		return ErrFileTypeNotAllowed
	}
	return nil
}

// Save writes the upload to disk under a random name and describes the
// stored blob for its database record.
func (s *LocalStore) Save(fh *multipart.FileHeader) (assignment.NewSubmissionFile, error) {
	if err := s.Validate(fh); err != nil {
		return assignment.NewSubmissionFile{}, err
	}

	src, err := fh.Open()
	if err != nil {
		return assignment.NewSubmissionFile{}, errors.Wrap(err, "opening upload")
	}
	defer func() { _ = src.Close() }()

	name := uuid.New().String() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return assignment.NewSubmissionFile{}, errors.Wrap(err, "creating blob")
	}
	defer func() { _ = dst.Close() }()

	if _, err = io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return assignment.NewSubmissionFile{}, errors.Wrap(err, "writing blob")
	}

	return assignment.NewSubmissionFile{
		FileName:    fh.Filename,
		StoragePath: name,
		Size:        fh.Size,
		MimeType:    fh.Header.Get("Content-Type"),
	}, nil
}

// Open opens a stored blob for download.
func (s *LocalStore) Open(storagePath string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.dir, storagePath))
	if err != nil {
		return nil, errors.Wrap(err, "opening blob")
	}
	return f, nil
}

// Remove deletes a stored blob. A missing blob is not an error.
func (s *LocalStore) Remove(storagePath string) error {
	if err := os.Remove(filepath.Join(s.dir, storagePath)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing blob")
	}
	return nil
}

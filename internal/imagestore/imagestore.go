// Package imagestore validates uploaded product images and keeps them under a
// single storage root.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AllowedSubtypes is the media subtype allow-list, matched case-sensitively.
var AllowedSubtypes = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"svg":  true,
	"gif":  true,
}

var (
	ErrStorageWriteFailed = errors.New("can't upload image")
	ErrInvalidName        = errors.New("invalid image name")
)

// UnsupportedMediaTypeError is returned when the declared subtype is not an image.
type UnsupportedMediaTypeError struct {
	Subtype string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("please upload an image file not %s file", e.Subtype)
}

// Transfer moves an upload payload to a destination path.
type Transfer interface {
	MoveTo(dst string) error
}

// TransferFunc adapts a function to Transfer.
type TransferFunc func(dst string) error

func (f TransferFunc) MoveTo(dst string) error { return f(dst) }

// UploadedFile is an incoming file as declared by the client.
type UploadedFile struct {
	MediaType string
	Transfer  Transfer
}

// FromMultipart wraps a multipart file header.
func FromMultipart(fh *multipart.FileHeader) UploadedFile {
	return UploadedFile{
		MediaType: fh.Header.Get("Content-Type"),
		Transfer:  multipartTransfer{fh: fh},
	}
}

type multipartTransfer struct {
	fh *multipart.FileHeader
}

func (t multipartTransfer) MoveTo(dst string) error {
	src, err := t.fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Subtype returns the part of a media type after the first slash.
func Subtype(mediaType string) string {
	_, sub, found := strings.Cut(mediaType, "/")
	if !found {
		return ""
	}
	return sub
}

// Store persists images under Root.
type Store struct {
	Root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create images dir %s", root)
	}
	return &Store{Root: root}, nil
}

// Path returns the absolute location of a stored image.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Root, name)
}

// Ingest validates the declared subtype and stores the payload under a fresh
// random name. No file is left behind on any error.
func (s *Store) Ingest(ctx context.Context, file UploadedFile) (string, error) {
	sub := Subtype(file.MediaType)
	if !AllowedSubtypes[sub] {
		return "", &UnsupportedMediaTypeError{Subtype: sub}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if file.Transfer == nil {
		return "", ErrStorageWriteFailed
	}

	name := uuid.NewString() + "." + sub
	dst := s.Path(name)
	if err := file.Transfer.MoveTo(dst); err != nil {
		_ = os.Remove(dst)
		return "", errors.Wrap(ErrStorageWriteFailed, err.Error())
	}
	if _, err := os.Stat(dst); err != nil {
		return "", errors.Wrap(ErrStorageWriteFailed, err.Error())
	}
	return name, nil
}

func validName(name string) bool {
	return name != "." && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// Remove deletes a stored image. An empty name or an already missing file is
// not an error.
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	if !validName(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	err := os.Remove(s.Path(name))
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "remove image %s", name)
}

// Sweep removes files that are not referenced and were last modified before
// now-grace. Returned names are the removed files.
func (s *Store) Sweep(referenced map[string]bool, grace time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "read images dir %s", s.Root)
	}
	cutoff := time.Now().Add(-grace)
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := s.Remove(entry.Name()); err != nil {
			zap.L().Warn("sweep: remove orphan image failed", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// MaxFileSize is the declared-size limit for a file transfer (spec.md §3).
const MaxFileSize = 3 * 1024 * 1024 // 3 MiB

var allowedFileExtensions = map[string]bool{
	".txt": true,
	".pdf": true,
	".jpg": true,
	".png": true,
}

func validFileExtension(path string) bool {
	return allowedFileExtensions[strings.ToLower(filepath.Ext(path))]
}

// validateSendfileType reports ErrInvalidFileType if path's extension is
// not on the allow-list.
func validateSendfileType(path string) error {
	if !validFileExtension(path) {
		return ErrInvalidFileType
	}
	return nil
}

// validateSendfileSize reports ErrFileTooLarge if size exceeds MaxFileSize.
func validateSendfileSize(size int64) error {
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// FileResolver stats a declared sendfile path so the engine can enforce the
// size limit before enqueueing. The engine never opens or reads the file
// itself — payload bytes are an opaque handle per spec.md §3 — but it must
// still learn the size, which is the one piece of filesystem interaction
// spec.md §9 (design note c) requires to be authoritative: a failed stat is
// a validation error, not a fallback to an unchecked size.
//
// This is the chat engine's analog of the teacher's Driver/ClientContext
// split: a small, swappable interface standing in for whatever actually
// holds the bytes (local disk, object storage, an in-memory stub for
// tests), generalized from file-system access to a single size lookup
// because the engine has no other filesystem concern.
type FileResolver interface {
	// Stat returns the size in bytes of the file at path, or an error if
	// the path cannot be statted.
	Stat(path string) (int64, error)
}

// osFileResolver resolves paths against the local filesystem with os.Stat.
// It is the default FileResolver.
type osFileResolver struct{}

func (osFileResolver) Stat(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %q", path)
	}
	return info.Size(), nil
}

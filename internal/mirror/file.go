package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jwalitptl/scribe/internal/model"
	"github.com/jwalitptl/scribe/pkg/security"
)

// File keeps the list in a single file, optionally encrypted at rest.
type File struct {
	path      string
	encryptor security.Encryptor
	mu        sync.Mutex
}

// NewFile stores the mirror at path. encryptor may be nil.
func NewFile(path string, encryptor security.Encryptor) (*File, error) {
	if path == "" {
		return nil, errors.New("mirror path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}
	return &File{path: path, encryptor: encryptor}, nil
}

func (f *File) Driver() string { return "file" }

func (f *File) Load(_ context.Context) ([]*model.PatientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror: %w", err)
	}

	if f.encryptor != nil {
		if data, err = f.encryptor.Decrypt(data); err != nil {
			return nil, fmt.Errorf("failed to decrypt mirror: %w", err)
		}
	}
	return decode(data)
}

// Save writes through a temp file and rename so a crash never leaves a
// truncated mirror behind.
func (f *File) Save(_ context.Context, records []*model.PatientRecord) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	if f.encryptor != nil {
		if data, err = f.encryptor.Encrypt(data); err != nil {
			return fmt.Errorf("failed to encrypt mirror: %w", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".mirror-*")
	if err != nil {
		return fmt.Errorf("failed to create mirror temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write mirror: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write mirror: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write mirror: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace mirror: %w", err)
	}
	return nil
}

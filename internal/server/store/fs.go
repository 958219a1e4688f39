package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/filex"
	"github.com/dmitrijs2005/pulsekeeper/internal/keylock"
)

// FileStore keeps one directory per collection under root and one file per
// record, named <key><ext>.
//
// Create writes a temporary file and hard-links it into place, so the
// link either fails because the name exists or publishes a complete file.
// Update writes a temporary file and renames it over the existing record.
// Readers therefore never observe a partial write.
type FileStore struct {
	root  string
	ext   string
	locks *keylock.Locker
}

var _ DocumentStore = (*FileStore)(nil)

// NewFileStore creates root if needed. ext defaults to ".json".
func NewFileStore(root, ext string) (*FileStore, error) {
	if ext == "" {
		ext = ".json"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	dir, err := filex.EnsureDir(root)
	if err != nil {
		return nil, common.WrapError(common.ErrorStorage, fmt.Sprintf("creating data directory %s", root), err)
	}
	return &FileStore{root: dir, ext: ext, locks: keylock.New()}, nil
}

func (s *FileStore) dir(collection string) string {
	return filepath.Join(s.root, collection)
}

func (s *FileStore) path(collection, key string) string {
	return filepath.Join(s.root, collection, key+s.ext)
}

func (s *FileStore) Create(_ context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return storageFailure("encode", collection, key, err)
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	dir, err := filex.EnsureDir(s.dir(collection))
	if err != nil {
		return storageFailure("mkdir", collection, key, err)
	}

	tmp, err := filex.WriteTemp(dir, data)
	if err != nil {
		return storageFailure("write", collection, key, err)
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, s.path(collection, key)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return alreadyExists(collection, key)
		}
		return storageFailure("link", collection, key, err)
	}

	filex.SyncDir(dir)
	return nil
}

func (s *FileStore) Read(_ context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	data, err := os.ReadFile(s.path(collection, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(collection, key)
		}
		return storageFailure("read", collection, key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return corrupt(collection, key, err)
	}
	return nil
}

func (s *FileStore) Update(_ context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return storageFailure("encode", collection, key, err)
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	final := s.path(collection, key)
	if _, err := os.Stat(final); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(collection, key)
		}
		return storageFailure("stat", collection, key, err)
	}

	tmp, err := filex.WriteTemp(s.dir(collection), data)
	if err != nil {
		return storageFailure("write", collection, key, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return storageFailure("rename", collection, key, err)
	}

	filex.SyncDir(s.dir(collection))
	return nil
}

func (s *FileStore) Delete(_ context.Context, collection, key string) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	if err := os.Remove(s.path(collection, key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(collection, key)
		}
		return storageFailure("remove", collection, key, err)
	}
	return nil
}

func (s *FileStore) Keys(_ context.Context, collection string) ([]string, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, storageFailure("list", collection, "", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, s.ext) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, s.ext))
	}
	return keys, nil
}

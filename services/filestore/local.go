// Package filestore persists uploaded course resources on local disk.
// Files are stored under random names so user-provided names never
// touch the filesystem; the original name lives in the database.
package filestore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating file store root")
	}
	return &LocalStore{root: root}, nil
}

// Save writes r to disk and returns the generated stored name.
func (s *LocalStore) Save(name string, r io.Reader) (string, error) {
	storedName := uuid.New().String() + filepath.Ext(name)
	f, err := os.Create(filepath.Join(s.root, storedName))
	if err != nil {
		return "", errors.Wrap(err, "creating stored file")
	}
	defer func() { _ = f.Close() }()

	if _, err = io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "writing stored file")
	}
	return storedName, nil
}

func (s *LocalStore) Open(storedName string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.Base(storedName)))
	if err != nil {
		return nil, errors.Wrap(err, "opening stored file")
	}
	return f, nil
}

func (s *LocalStore) Remove(storedName string) error {
	err := os.Remove(filepath.Join(s.root, filepath.Base(storedName)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing stored file")
	}
	return nil
}

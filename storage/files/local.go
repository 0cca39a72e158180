// Package files provides file storage backends for uploaded content.
package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

var (
	ErrNotFound = errors.New("file not found")

	errInvalidKey = errors.New("invalid storage key")
)

// LocalStorage stores uploads on the local filesystem under a root
// directory. Keys are slash-separated relative paths.
type LocalStorage struct {
	root string
}

var _ core.FileStorage = (*LocalStorage)(nil)

func NewLocalStorage(conf *core.Config) *LocalStorage {
	return &LocalStorage{root: conf.UploadDir}
}

// path resolves key under the root, rejecting traversal outside it.
func (ls *LocalStorage) path(key string) (string, error) {
	if key == "" {
		return "", errInvalidKey
	}
	path := filepath.Join(ls.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(ls.root)+string(os.PathSeparator)) {
		return "", errInvalidKey
	}
	return path, nil
}

func (ls *LocalStorage) Save(_ context.Context, key string, r io.Reader) (string, error) {
	path, err := ls.path(key)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	defer func() { _ = f.Close() }()

	if _, err = io.Copy(f, r); err != nil {
		return "", errors.Wrap(err, "writing upload file")
	}
	return key, nil
}

func (ls *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := ls.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "opening upload file")
	}
	return f, nil
}

func (ls *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := ls.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting upload file")
	}
	return nil
}

package objectstore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

// LocalStore keeps objects under a directory of the local file system, served at PublicBaseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ core.ObjectStore = (*LocalStore)(nil)

func NewLocalStore(conf *core.Config) (*LocalStore, error) {
	dir, err := filepath.Abs(conf.Storage.LocalDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolving storage dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(conf.Storage.PublicBaseURL, "/")}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// resolve maps a key to its file, refusing keys escaping the storage dir.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", errors.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	fp, err := s.resolve(key)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", "", errors.Wrap(err, "creating object dir")
	}

	f, err := os.Create(fp)
	if err != nil {
		return "", "", errors.Wrap(err, "creating object")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return "", "", errors.Wrap(err, "writing object")
	}
	if err := f.Close(); err != nil {
		return "", "", errors.Wrap(err, "closing object")
	}

	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	return s.baseURL + "/" + key, key, nil
}

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	fp, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing object")
	}
	return nil
}

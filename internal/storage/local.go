package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps objects as files under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	base := s.path(prefix)
	if _, err := os.Stat(base); err != nil {
		return nil, Error.Wrap(err)
	}
	var out []Object
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p != base && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, Object{Key: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return out, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return f, nil
}

// Put writes through a temporary file and renames it into place.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Error.Wrap(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return Error.Wrap(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return Error.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return Error.Wrap(err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

func (s *LocalStore) RemovePrefix(ctx context.Context, prefix string) error {
	err := os.RemoveAll(s.path(prefix))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Error.Wrap(err)
	}
	return nil
}

func (s *LocalStore) URL(key string) string { return s.path(key) }

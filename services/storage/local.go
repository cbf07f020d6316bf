package storagesvc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LocalStore keeps documents under a root directory. References are the document names.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving documents root")
	}
	if err = os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating documents root")
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) path(ref string) (string, error) {
	name, err := cleanName(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(name)), nil
}

// Save replaces the document atomically.
func (s *LocalStore) Save(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "creating document directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing document")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing document")
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		return "", errors.Wrap(err, "moving document")
	}
	return name, nil
}

func (s *LocalStore) Exists(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.path(ref)
	if err != nil {
		return false, err
	}
	switch _, err = os.Stat(p); {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrap(err, "checking document")
	}
}

func (s *LocalStore) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(p)
	return content, errors.Wrap(err, "reading document")
}

// Delete removes the document. Missing documents are ignored.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting document")
	}
	return nil
}

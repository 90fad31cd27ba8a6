package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type fileStore struct {
	dir string
}

/*
NewFileStore returns a Store that keeps each checkpoint as a file
under dir, creating the directory if needed. Saves write to a
temporary file first and rename it into place, so a crash mid-write
never leaves a truncated checkpoint where a good one stood.
*/
func NewFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("preparing checkpoint directory %s: %v", dir, err)
	}
	return &fileStore{dir: dir}, nil
}

func (fs *fileStore) Save(ctx context.Context, key string, data []byte) error {
	path := fs.pathFor(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("saving checkpoint %s: %v", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("saving checkpoint %s: %v", key, err)
	}
	return nil
}

func (fs *fileStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(fs.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loading checkpoint %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("loading checkpoint %s: %v", key, err)
	}
	return data, nil
}

func (fs *fileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(fs.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting checkpoint %s: %v", key, err)
	}
	return nil
}

func (fs *fileStore) Close(ctx context.Context) error {
	return nil
}

func (fs *fileStore) pathFor(key string) string {
	return filepath.Join(fs.dir, key)
}

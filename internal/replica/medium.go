package replica

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrMissing is returned by Medium.Get for a blob that was never written.
var ErrMissing = errors.New("blob missing")

// Medium is a named-blob store readable by both contexts.
type Medium interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
}

// MemoryMedium keeps blobs in a map; the in-process worker reads it.
type MemoryMedium struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{blobs: make(map[string][]byte)}
}

func (m *MemoryMedium) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, ErrMissing
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryMedium) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), data...)
	return nil
}

// FileMedium stores each blob as dir/name.json. Writes go through a temp
// file and rename so a reader never sees a partial blob.
type FileMedium struct {
	dir string
}

func NewFileMedium(dir string) *FileMedium {
	return &FileMedium{dir: dir}
}

func (f *FileMedium) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f *FileMedium) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMissing
	}
	return data, err
}

func (f *FileMedium) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path(name))
}

// RedisMedium stores blobs as plain Redis strings under prefix+name.
type RedisMedium struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisMedium(rdb *redis.Client, prefix string) *RedisMedium {
	return &RedisMedium{rdb: rdb, prefix: prefix}
}

func (r *RedisMedium) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.prefix+name).Bytes()
	if err == redis.Nil {
		return nil, ErrMissing
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return b, nil
}

func (r *RedisMedium) Put(ctx context.Context, name string, data []byte) error {
	if err := r.rdb.Set(ctx, r.prefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (r *RedisMedium) Close() error {
	return r.rdb.Close()
}

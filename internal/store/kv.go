package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/1broseidon/overlayd/internal/platform"
)

// FileKV stores each key as a JSON file in a directory.
type FileKV struct {
	dir string
}

var _ platform.KV = (*FileKV)(nil)

// NewFileKV returns a FileKV rooted at dir. The directory is created on first write.
func NewFileKV(dir string) *FileKV {
	return &FileKV{dir: dir}
}

// Dir returns the directory backing the store.
func (kv *FileKV) Dir() string {
	return kv.dir
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	if strings.Contains(key, string(os.PathSeparator)) || key != filepath.Base(key) || strings.Contains(key, "..") {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

func (kv *FileKV) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(kv.dir, key+".json"), nil
}

func (kv *FileKV) Get(key string) ([]byte, bool, error) {
	path, err := kv.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, true, nil
}

func (kv *FileKV) Put(key string, value []byte) error {
	path, err := kv.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(kv.dir, 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := writeFileAtomic(path, value, 0600); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// MemoryKV is an in-process KV, used when nothing needs to outlive the process.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ platform.KV = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (kv *MemoryKV) Get(key string) ([]byte, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (kv *MemoryKV) Put(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = append([]byte(nil), value...)
	return nil
}

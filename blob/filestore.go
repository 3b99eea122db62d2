package blob

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bucketmesh/bucketd/codec"
)

// FileStore implements Store using the local filesystem. Files are stored
// at {baseDir}/{hex(hash[:1])}/{hex(hash)}; the first byte (2 hex chars) is
// used as a subdirectory for sharding.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a file-based blob store rooted at baseDir. The
// directory is created if it does not already exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (fs *FileStore) shardDir(hash codec.Hash) string {
	return filepath.Join(fs.baseDir, hex.EncodeToString(hash[:1]))
}

func (fs *FileStore) filePath(hash codec.Hash) string {
	return filepath.Join(fs.shardDir(hash), hex.EncodeToString(hash[:]))
}

// Put stores data, computing its Link under format, and writes it to disk
// only if not already present (idempotent insert-by-hash).
func (fs *FileStore) Put(data []byte, format codec.Format) (codec.Link, error) {
	if len(data) == 0 {
		return codec.Link{}, ErrEmptyContent
	}
	link := codec.LinkFor(data, format)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.filePath(link.Hash)
	if _, err := os.Stat(path); err == nil {
		return link, nil
	}

	if err := os.MkdirAll(fs.shardDir(link.Hash), 0700); err != nil {
		return codec.Link{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return codec.Link{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return link, nil
}

// Get retrieves content by hash.
func (fs *FileStore) Get(hash codec.Hash) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.filePath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return data, nil
}

// Has reports whether content exists for hash.
func (fs *FileStore) Has(hash codec.Hash) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.filePath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// Delete removes content by hash.
func (fs *FileStore) Delete(hash codec.Hash) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.filePath(hash)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Size returns the size in bytes of stored content for hash.
func (fs *FileStore) Size(hash codec.Hash) (int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	info, err := os.Stat(fs.filePath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return info.Size(), nil
}

// List returns every hash stored, scanning the shard directories.
func (fs *FileStore) List() ([]codec.Hash, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var result []codec.Hash

	shards, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(fs.baseDir, shard.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			raw, err := hex.DecodeString(f.Name())
			if err != nil || len(raw) != codec.HashSize {
				continue
			}
			hash, err := codec.HashFromBytes(raw)
			if err != nil {
				continue
			}
			result = append(result, hash)
		}
	}
	return result, nil
}

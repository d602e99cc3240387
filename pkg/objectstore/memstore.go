package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"worker-preprocess/pkg/locator"
)

// MemStore is an in-memory Store used in tests.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (s *MemStore) Seed(bucket, key string, data []byte) string {
	loc := locator.Format(bucket, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[loc] = data
	return loc
}

func (s *MemStore) Fetch(_ context.Context, loc string, destPath string) error {
	if _, _, err := locator.Parse(loc); err != nil {
		return err
	}
	s.mu.Lock()
	data, ok := s.objects[loc]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("object not found: %s", loc)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (s *MemStore) PutFile(_ context.Context, localPath, bucket, key, contentType string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	loc := locator.Format(bucket, key)
	s.mu.Lock()
	s.objects[loc] = data
	s.puts++
	s.mu.Unlock()
	return loc, nil
}

func (s *MemStore) PutStream(_ context.Context, r io.Reader, _ int64, bucket, key, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	loc := locator.Format(bucket, key)
	s.mu.Lock()
	s.objects[loc] = data
	s.puts++
	s.mu.Unlock()
	return loc, nil
}

// PutCount reports how many uploads the store has accepted.
func (s *MemStore) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Has reports whether an object exists under loc.
func (s *MemStore) Has(loc string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[loc]
	return ok
}

package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/repository"
	"github.com/dhis2/dhis2-apptore/common/errs"
	"github.com/dhis2/dhis2-apptore/common/logger"
)

// ArtifactStore persists uploaded binaries and hands back opaque refs.
// The catalog never inspects artifact content; any failure from Store must
// abort the surrounding operation before entity state is committed.
type ArtifactStore interface {
	// Store persists content and returns its ref
	Store(ctx context.Context, content []byte, mediaType string) (string, error)
	// Get retrieves content by ref
	Get(ctx context.Context, ref string) ([]byte, error)
}

// CASArtifactStore is the Postgres-backed store. Refs are content-addressed
// (sha256), so re-uploading identical bytes is a no-op.
type CASArtifactStore struct {
	repo *repository.ArtifactBlobRepository
	log  *logger.Logger
}

// NewCASArtifactStore creates a content-addressed artifact store
func NewCASArtifactStore(repo *repository.ArtifactBlobRepository, log *logger.Logger) *CASArtifactStore {
	return &CASArtifactStore{
		repo: repo,
		log:  log,
	}
}

// Store persists content and returns its content-addressed ref
func (s *CASArtifactStore) Store(ctx context.Context, content []byte, mediaType string) (string, error) {
	hash := sha256.Sum256(content)
	ref := fmt.Sprintf("sha256:%x", hash)

	// Check if content already exists (deduplication)
	exists, err := s.repo.Exists(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	if exists {
		s.log.Info("artifact already stored", "ref", ref)
		return ref, nil
	}

	blob := &repository.ArtifactBlob{
		Ref:       ref,
		MediaType: mediaType,
		SizeBytes: int64(len(content)),
		Content:   content,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, blob); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	s.log.Info("stored artifact", "ref", ref, "size_bytes", len(content))
	return ref, nil
}

// Get retrieves content by ref
func (s *CASArtifactStore) Get(ctx context.Context, ref string) ([]byte, error) {
	content, err := s.repo.GetContent(ctx, ref)
	if err != nil {
		return nil, err
	}

	return content, nil
}

// MemoryArtifactStore keeps artifacts in process memory; backs tests and the
// "memory" storage configuration.
type MemoryArtifactStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryArtifactStore creates an empty in-memory artifact store
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		blobs: make(map[string][]byte),
	}
}

// Store persists content and returns its content-addressed ref
func (s *MemoryArtifactStore) Store(ctx context.Context, content []byte, mediaType string) (string, error) {
	hash := sha256.Sum256(content)
	ref := fmt.Sprintf("sha256:%x", hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[ref]; !exists {
		cp := make([]byte, len(content))
		copy(cp, content)
		s.blobs[ref] = cp
	}

	return ref, nil
}

// Get retrieves content by ref
func (s *MemoryArtifactStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, exists := s.blobs[ref]
	if !exists {
		return nil, errs.NotFound(ref)
	}

	cp := make([]byte, len(content))
	copy(cp, content)
	return cp, nil
}

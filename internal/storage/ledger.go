package storage

import (
	"context"
	"sync"

	"resource-linker/internal/models"
)

// LedgerRepository 记录已经成功发布的文件，重复运行时据此跳过。
type LedgerRepository interface {
	IsAnnounced(ctx context.Context, filename string) (bool, error)
	MarkAnnounced(ctx context.Context, res *models.AnnouncedResource) error
}

// memoryLedgerRepository keeps the ledger for the lifetime of the process.
type memoryLedgerRepository struct {
	mu      sync.RWMutex
	entries map[string]models.AnnouncedResource
}

// NewMemoryLedgerRepository creates an in-process LedgerRepository.
func NewMemoryLedgerRepository() LedgerRepository {
	return &memoryLedgerRepository{entries: make(map[string]models.AnnouncedResource)}
}

func (r *memoryLedgerRepository) IsAnnounced(ctx context.Context, filename string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[filename]
	return ok, nil
}

func (r *memoryLedgerRepository) MarkAnnounced(ctx context.Context, res *models.AnnouncedResource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[res.Filename] = *res
	return nil
}

// Package store defines where the harvesting tables live and serialises
// edits to them.
package store

import (
	"context"
	"sync"

	"github.com/keilos1/harvestplan/core/model"
)

// Repository loads and saves the four harvesting tables.
type Repository interface {
	Load(ctx context.Context) (model.Dataset, error)
	Save(ctx context.Context, d model.Dataset) error
}

// Memory keeps the dataset in process memory.
type Memory struct {
	mu sync.RWMutex
	d  model.Dataset
}

// NewMemory returns a Memory store holding a copy of d.
func NewMemory(d model.Dataset) *Memory {
	return &Memory{d: d.Clone()}
}

// Load returns a copy of the stored dataset.
func (m *Memory) Load(ctx context.Context) (model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return model.Dataset{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Clone(), nil
}

// Save replaces the stored dataset with a copy of d.
func (m *Memory) Save(ctx context.Context, d model.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.d = d.Clone()
	m.mu.Unlock()
	return nil
}

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/keilos1/harvestplan/core/model"
)

// Editor applies mutations to a Repository one at a time. Each edit loads
// the current tables, applies the mutation, validates and saves. Nothing is
// saved when the mutation or the validation fails.
type Editor struct {
	mu   sync.Mutex
	repo Repository
}

// NewEditor wraps repo.
func NewEditor(repo Repository) *Editor { return &Editor{repo: repo} }

// Repository returns the wrapped repository.
func (e *Editor) Repository() Repository { return e.repo }

// Snapshot loads the current tables.
func (e *Editor) Snapshot(ctx context.Context) (model.Dataset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repo.Load(ctx)
}

// Edit runs fn on the loaded dataset and saves the result. The saved
// dataset is returned.
func (e *Editor) Edit(ctx context.Context, fn func(*model.Dataset) error) (model.Dataset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.repo.Load(ctx)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("load: %w", err)
	}
	if err := fn(&d); err != nil {
		return model.Dataset{}, err
	}
	if err := d.Validate(); err != nil {
		return model.Dataset{}, err
	}
	if err := e.repo.Save(ctx, d); err != nil {
		return model.Dataset{}, fmt.Errorf("save: %w", err)
	}
	return d, nil
}

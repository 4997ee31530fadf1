package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
)

// MemoryRepository is an in-memory Repository for tests and dev mode.
type MemoryRepository struct {
	mu          sync.RWMutex
	dataSources map[string]*datasource.Config
	triggers    map[string]*trigger.Trigger
	groups      map[string]*trigger.Group

	// failNext, when set, makes the next mutating call fail. Test helper.
	failNext error
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		dataSources: make(map[string]*datasource.Config),
		triggers:    make(map[string]*trigger.Trigger),
		groups:      make(map[string]*trigger.Group),
	}
}

// FailNext makes the next mutating operation return err. Tests only.
func (r *MemoryRepository) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *MemoryRepository) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// GetDataSource retrieves a data source by id.
func (r *MemoryRepository) GetDataSource(ctx context.Context, id string) (*datasource.Config, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.dataSources[id]
	if !ok {
		return nil, errors.NewNotFound("data source", id)
	}
	return cfg.Clone(), nil
}

// ListDataSources returns all data sources ordered by id.
func (r *MemoryRepository) ListDataSources(ctx context.Context) ([]*datasource.Config, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*datasource.Config, 0, len(r.dataSources))
	for _, cfg := range r.dataSources {
		out = append(out, cfg.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveDataSource upserts a data source record.
func (r *MemoryRepository) SaveDataSource(ctx context.Context, cfg *datasource.Config) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	stored := cfg.Clone()
	if existing, ok := r.dataSources[cfg.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	r.dataSources[cfg.ID] = stored
	return nil
}

// DeleteDataSource removes a data source by id.
func (r *MemoryRepository) DeleteDataSource(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.dataSources[id]; !ok {
		return errors.NewNotFound("data source", id)
	}
	delete(r.dataSources, id)
	return nil
}

// GetTrigger retrieves a trigger by id.
func (r *MemoryRepository) GetTrigger(ctx context.Context, id string) (*trigger.Trigger, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triggers[id]
	if !ok {
		return nil, errors.NewNotFound("trigger", id)
	}
	return t.Clone(), nil
}

// ListTriggers returns all triggers ordered by name.
func (r *MemoryRepository) ListTriggers(ctx context.Context) ([]*trigger.Trigger, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*trigger.Trigger, 0, len(r.triggers))
	for _, t := range r.triggers {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveTrigger upserts a trigger record.
func (r *MemoryRepository) SaveTrigger(ctx context.Context, t *trigger.Trigger) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	stored := t.Clone()
	if existing, ok := r.triggers[t.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	r.triggers[t.ID] = stored
	return nil
}

// DeleteTrigger removes a trigger by id.
func (r *MemoryRepository) DeleteTrigger(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.triggers[id]; !ok {
		return errors.NewNotFound("trigger", id)
	}
	delete(r.triggers, id)
	return nil
}

// GetGroup retrieves a group by id.
func (r *MemoryRepository) GetGroup(ctx context.Context, id string) (*trigger.Group, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, errors.NewNotFound("trigger group", id)
	}
	return g.Clone(), nil
}

// ListGroups returns all groups ordered by name.
func (r *MemoryRepository) ListGroups(ctx context.Context) ([]*trigger.Group, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*trigger.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveGroup upserts a group record.
func (r *MemoryRepository) SaveGroup(ctx context.Context, g *trigger.Group) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	stored := g.Clone()
	if existing, ok := r.groups[g.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	r.groups[g.ID] = stored
	return nil
}

// DeleteGroup removes a group by id.
func (r *MemoryRepository) DeleteGroup(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.groups[id]; !ok {
		return errors.NewNotFound("trigger group", id)
	}
	delete(r.groups, id)
	return nil
}

// Verify MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

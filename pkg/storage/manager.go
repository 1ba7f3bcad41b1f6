package storage

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Manager persists tagged entities through a Store. Entities are queued by
// Persist and written in order by Flush, so related entities must be
// persisted before the entities pointing at them.
type Manager struct {
	store Store
	reg   *metadata.Registry

	mu      sync.Mutex
	pending []any
}

// NewManager creates a manager. The registry must be resolved.
func NewManager(store Store, reg *metadata.Registry) *Manager {
	return &Manager{store: store, reg: reg}
}

// Persist queues entities. Each must be a pointer to a registered type.
func (m *Manager) Persist(entities ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, entities...)
}

// Flush creates every queued entity and writes generated identifiers back
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for i, entity := range pending {
		if err := m.create(ctx, entity); err != nil {
			return fmt.Errorf("flush entity %d: %w", i, err)
		}
	}
	return nil
}

func (m *Manager) create(ctx context.Context, entity any) error {
	t := reflect.TypeOf(entity)
	if t == nil || t.Kind() != reflect.Ptr {
		return fmt.Errorf("%T must be a pointer: %w", entity, ErrInvalidItem)
	}
	res, ok := m.reg.ForType(t)
	if !ok {
		return fmt.Errorf("%s: %w", t.Elem(), metadata.ErrUnknownResource)
	}

	item, err := res.ItemOf(entity)
	if err != nil {
		return err
	}
	created, err := m.store.Create(ctx, res, item)
	if err != nil {
		return err
	}
	if res.Root().Identifier.Kind == metadata.IdentifierComposite {
		return nil
	}
	return res.SetIdentifier(entity, res.Root().IdentifierValue(created))
}

// Clear drops queued entities
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

// Package memory implements store.Store in process memory. It backs unit
// tests and the server's development mode; data is lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// state holds every table. Stored entries are private copies and are never
// mutated in place, so cloning the maps is enough to snapshot a state.
type state struct {
	organizations  map[uuid.UUID]*models.Organization
	products       map[uuid.UUID]*models.Product
	dataSources    map[uuid.UUID]*models.DataSource
	partnerClients map[string]*models.PartnerClient
	footprints     map[uuid.UUID]*models.ProductFootprint
	tasks          map[uuid.UUID]*models.Task
}

func newState() *state {
	return &state{
		organizations:  make(map[uuid.UUID]*models.Organization),
		products:       make(map[uuid.UUID]*models.Product),
		dataSources:    make(map[uuid.UUID]*models.DataSource),
		partnerClients: make(map[string]*models.PartnerClient),
		footprints:     make(map[uuid.UUID]*models.ProductFootprint),
		tasks:          make(map[uuid.UUID]*models.Task),
	}
}

func (s *state) clone() *state {
	return &state{
		organizations:  cloneMap(s.organizations),
		products:       cloneMap(s.products),
		dataSources:    cloneMap(s.dataSources),
		partnerClients: cloneMap(s.partnerClients),
		footprints:     cloneMap(s.footprints),
		tasks:          cloneMap(s.tasks),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store implements store.Store using in-memory storage.
type Store struct {
	*queries

	mu sync.RWMutex
	st *state
}

var _ store.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	s := &Store{st: newState()}
	s.queries = &queries{s: s}
	return s
}

// WithTx runs fn against a snapshot of the store and publishes the snapshot
// only when fn succeeds. Transactions are serialized.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.st.clone()
	if err := fn(&queries{s: s, tx: tx}); err != nil {
		return err
	}
	s.st = tx
	return nil
}

// queries runs against the live state under the store lock, or against a
// transaction snapshot while WithTx already holds the lock.
type queries struct {
	s  *Store
	tx *state
}

func (q *queries) read() (*state, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.s.mu.RLock()
	return q.s.st, q.s.mu.RUnlock
}

func (q *queries) write() (*state, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.s.mu.Lock()
	return q.s.st, q.s.mu.Unlock
}

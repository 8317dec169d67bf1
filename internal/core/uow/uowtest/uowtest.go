// Package uowtest provides in-memory transaction and entity store doubles
// for tests of code built on the unit of work.
package uowtest

import (
	"context"
	"errors"
	"sync"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/core/entity"
)

// Journal is state that must be restored when a transaction rolls back.
type Journal interface {
	Snapshot() any
	Restore(snapshot any)
}

type txKey struct{}

// TxManager is a tx.Manager that snapshots every registered journal on begin
// and restores them on error.
type TxManager struct {
	mu        sync.Mutex
	journals  []Journal
	Commits   int
	Rollbacks int
}

// NewTxManager creates a manager guarding the given journals.
func NewTxManager(journals ...Journal) *TxManager {
	return &TxManager{journals: journals}
}

// Register adds a journal.
func (m *TxManager) Register(j Journal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals = append(m.journals, j)
}

// InTx reports whether ctx carries a transaction opened by a TxManager.
func InTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	journals := append([]Journal(nil), m.journals...)
	m.mu.Unlock()

	snapshots := make([]any, len(journals))
	for i, j := range journals {
		snapshots[i] = j.Snapshot()
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for i, j := range journals {
			j.Restore(snapshots[i])
		}
		m.mu.Lock()
		m.Rollbacks++
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()
	return nil
}

// ErrNoTx is returned by Store when called outside a transaction.
var ErrNoTx = errors.New("uowtest: store used outside transaction")

// Row is the persisted copy of an entity.
type Row struct {
	Version int
	Entity  entity.Persistable
}

type rowKey struct {
	table string
	id    int64
}

// Store is an in-memory uow.EntityStore with optimistic locking.
type Store struct {
	mu   sync.Mutex
	rows map[rowKey]Row

	// FailOn makes the next flush of the given id fail with this error.
	FailOn map[int64]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{rows: make(map[rowKey]Row), FailOn: make(map[int64]error)}
}

// Seed places an entity directly into the store, bypassing transactions.
func (s *Store) Seed(e entity.Persistable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rowKey{e.TableName(), e.GetID()}] = Row{Version: e.GetVersion(), Entity: e}
}

// Get returns the stored row.
func (s *Store) Get(table string, id int64) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[rowKey{table, id}]
	return r, ok
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) check(ctx context.Context, e entity.Persistable) error {
	if !InTx(ctx) {
		return ErrNoTx
	}
	if err, ok := s.FailOn[e.GetID()]; ok {
		return err
	}
	return nil
}

// Insert implements uow.EntityStore.
func (s *Store) Insert(ctx context.Context, e entity.Persistable) error {
	if err := s.check(ctx, e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rowKey{e.TableName(), e.GetID()}
	if _, ok := s.rows[k]; ok {
		return apperror.NewDuplicate(e.TableName(), "id", "")
	}
	s.rows[k] = Row{Version: e.GetVersion(), Entity: e}
	return nil
}

// Update implements uow.EntityStore.
func (s *Store) Update(ctx context.Context, e entity.Persistable) error {
	if err := s.check(ctx, e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rowKey{e.TableName(), e.GetID()}
	row, ok := s.rows[k]
	if !ok || row.Version != e.GetVersion() {
		return apperror.NewConcurrentModification(e.TableName(), e.GetID())
	}
	e.SetVersion(row.Version + 1)
	s.rows[k] = Row{Version: row.Version + 1, Entity: e}
	return nil
}

// Delete implements uow.EntityStore.
func (s *Store) Delete(ctx context.Context, e entity.Persistable) error {
	if err := s.check(ctx, e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rowKey{e.TableName(), e.GetID()}
	if _, ok := s.rows[k]; !ok {
		return apperror.NewNotFound(e.TableName(), e.GetID())
	}
	delete(s.rows, k)
	return nil
}

// Snapshot implements Journal.
func (s *Store) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[rowKey]Row, len(s.rows))
	for k, v := range s.rows {
		cp[k] = v
	}
	return cp
}

// Restore implements Journal.
func (s *Store) Restore(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = snapshot.(map[rowKey]Row)
}

package uow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appctx "ytsoob/internal/core/context"
	"ytsoob/internal/core/entity"
	"ytsoob/internal/core/tx"
)

// ErrNotTracked is returned when an operation needs an entity the unit of work does not know.
var ErrNotTracked = errors.New("entity is not tracked by this unit of work")

// EntityStore flushes single entities inside the ambient transaction.
type EntityStore interface {
	Insert(ctx context.Context, e entity.Persistable) error
	Update(ctx context.Context, e entity.Persistable) error
	Delete(ctx context.Context, e entity.Persistable) error
}

// Participant writes additional state in the same transaction, after entities are flushed.
// The outbox service is the main participant. Participants must not call back into the UnitOfWork.
type Participant interface {
	CommitAndPersist(ctx context.Context) error
}

// CommitObserver is an optional Participant extension notified after a successful commit.
type CommitObserver interface {
	Committed()
}

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithClock overrides the commit clock.
func WithClock(clock func() time.Time) Option {
	return func(u *UnitOfWork) {
		if clock != nil {
			u.clock = clock
		}
	}
}

// WithActorResolver overrides how the acting user is read from ctx.
// The resolver must not panic; nil means anonymous.
func WithActorResolver(resolve func(ctx context.Context) *int64) Option {
	return func(u *UnitOfWork) {
		if resolve != nil {
			u.actor = resolve
		}
	}
}

// WithInterceptors replaces the default interceptor list.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(u *UnitOfWork) {
		u.interceptors = interceptors
	}
}

// WithParticipants enlists participants at construction time.
func WithParticipants(participants ...Participant) Option {
	return func(u *UnitOfWork) {
		u.participants = append(u.participants, participants...)
	}
}

// UnitOfWork tracks entity changes for one request and flushes them atomically.
// It is not meant to be shared between requests.
type UnitOfWork struct {
	txManager    tx.Manager
	store        EntityStore
	interceptors []Interceptor
	participants []Participant
	clock        func() time.Time
	actor        func(ctx context.Context) *int64

	mu      sync.Mutex
	entries []*Entry
	index   map[entity.Persistable]*Entry
}

// New creates a unit of work over the given transaction manager and store.
func New(txManager tx.Manager, store EntityStore, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		txManager:    txManager,
		store:        store,
		interceptors: DefaultInterceptors(),
		clock:        defaultClock,
		actor:        appctx.ActorID,
		index:        make(map[entity.Persistable]*Entry),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// defaultClock truncates to microseconds so stamps survive a PostgreSQL round trip unchanged.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Enlist adds a participant to the next SaveChanges.
func (u *UnitOfWork) Enlist(p Participant) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.participants = append(u.participants, p)
}

// Add stages a new entity for insert.
func (u *UnitOfWork) Add(e entity.Persistable) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.track(e, entity.Added)
}

// Attach tracks an entity loaded from the store as Unchanged.
func (u *UnitOfWork) Attach(e entity.Persistable) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.index[e]; ok {
		return
	}
	u.track(e, entity.Unchanged)
}

// Update stages a modification. Entities added in this unit of work stay Added.
func (u *UnitOfWork) Update(e entity.Persistable) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if entry, ok := u.index[e]; ok {
		if entry.State == entity.Unchanged {
			entry.State = entity.Modified
		}
		return
	}
	u.track(e, entity.Modified)
}

// Remove stages a delete. Removing an entity added in this unit of work just untracks it.
func (u *UnitOfWork) Remove(e entity.Persistable) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if entry, ok := u.index[e]; ok {
		if entry.State == entity.Added {
			u.detach(e)
			return
		}
		entry.State = entity.Deleted
		return
	}
	u.track(e, entity.Deleted)
}

// StateOf returns the tracked state of e.
func (u *UnitOfWork) StateOf(e entity.Persistable) (entity.State, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	entry, ok := u.index[e]
	if !ok {
		return entity.Unchanged, ErrNotTracked
	}
	return entry.State, nil
}

// Entries returns a snapshot of all tracked entries.
func (u *UnitOfWork) Entries() []Entry {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Entry, 0, len(u.entries))
	for _, e := range u.entries {
		out = append(out, *e)
	}
	return out
}

// HasChanges reports whether any entry is pending.
func (u *UnitOfWork) HasChanges() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, e := range u.entries {
		if e.State != entity.Unchanged {
			return true
		}
	}
	return false
}

// SaveChanges runs the interceptors and flushes every pending entry plus all participants
// in one transaction. On success flushed entries become Unchanged and physically deleted
// ones are untracked. On failure nothing is committed and versions are restored.
func (u *UnitOfWork) SaveChanges(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	pending := make([]*Entry, 0, len(u.entries))
	versions := make(map[*Entry]int, len(u.entries))
	for _, e := range u.entries {
		if e.State == entity.Unchanged {
			continue
		}
		pending = append(pending, e)
		versions[e] = e.Entity.GetVersion()
	}

	err := u.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sc := &SaveContext{
			Now:     u.clock(),
			Actor:   u.actor(ctx),
			Entries: pending,
		}
		for _, ic := range u.interceptors {
			ic.SavingChanges(sc)
		}

		for _, e := range pending {
			if err := u.flush(ctx, e); err != nil {
				return err
			}
		}

		for _, p := range u.participants {
			if err := p.CommitAndPersist(ctx); err != nil {
				return fmt.Errorf("persist participant state: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		for e, v := range versions {
			e.Entity.SetVersion(v)
		}
		return err
	}

	for _, e := range pending {
		if e.State == entity.Deleted {
			u.detach(e.Entity)
			continue
		}
		e.State = entity.Unchanged
		e.softDeleted = false
	}
	for _, p := range u.participants {
		if obs, ok := p.(CommitObserver); ok {
			obs.Committed()
		}
	}
	return nil
}

func (u *UnitOfWork) flush(ctx context.Context, e *Entry) error {
	var err error
	switch e.State {
	case entity.Added:
		err = u.store.Insert(ctx, e.Entity)
	case entity.Modified:
		err = u.store.Update(ctx, e.Entity)
	case entity.Deleted:
		err = u.store.Delete(ctx, e.Entity)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s %d: %w", e.State, e.Entity.TableName(), e.Entity.GetID(), err)
	}
	return nil
}

// track must be called with mu held.
func (u *UnitOfWork) track(e entity.Persistable, state entity.State) {
	entry := &Entry{Entity: e, State: state}
	u.entries = append(u.entries, entry)
	u.index[e] = entry
}

// detach must be called with mu held.
func (u *UnitOfWork) detach(e entity.Persistable) {
	delete(u.index, e)
	for i, entry := range u.entries {
		if entry.Entity == e {
			u.entries = append(u.entries[:i], u.entries[i+1:]...)
			return
		}
	}
}
